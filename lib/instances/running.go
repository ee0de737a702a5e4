package instances

import (
	"context"
	"fmt"

	"github.com/onkernel/devattach/lib/hypervisor"
	"github.com/onkernel/devattach/lib/logger"
	"github.com/onkernel/devattach/lib/vmm"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MarkRunning moves an instance from created to running and replays the
// devices queued before boot, exactly once.
func (m *manager) MarkRunning(ctx context.Context, id string) (*Instance, error) {
	log := logger.FromContext(ctx)

	var span trace.Span
	if m.metrics != nil && m.metrics.tracer != nil {
		ctx, span = m.metrics.tracer.Start(ctx, "MarkRunning")
		defer span.End()
	}

	var result Instance
	err := m.withInstance(id, func(inst *instance) error {
		from := inst.meta.State
		if err := canTransition(from, hypervisor.StateRunning); err != nil {
			return err
		}

		api, err := m.newClient(inst.meta.SocketPath)
		if err != nil {
			return fmt.Errorf("connect vmm api: %w", err)
		}
		if err := confirmBooted(ctx, api); err != nil {
			return err
		}
		inst.attacher.SetAPISocket(api)
		inst.attacher.SetState(hypervisor.StateRunning)
		inst.meta.State = hypervisor.StateRunning
		m.recordStateTransition(ctx, string(from), string(hypervisor.StateRunning))

		if err := m.saveMetadata(&inst.meta); err != nil {
			log.WarnContext(ctx, "failed to persist running state", "instance_id", id, "error", err)
		}

		pending := len(inst.attacher.PendingDevices())
		log.InfoContext(ctx, "instance running", "instance_id", id, "pending_devices", pending)

		replayErr := inst.attacher.ReplayPendingDevices(ctx)
		result = inst.view()
		if replayErr != nil {
			return fmt.Errorf("%w: %w", ErrReplayFailed, replayErr)
		}
		return nil
	})
	if err != nil {
		if span != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		log.ErrorContext(ctx, "failed to mark instance running", "instance_id", id, "error", err)
		return nil, err
	}

	return &result, nil
}

// confirmBooted checks that the VMM answers on its socket and reports the VM
// as running. Nothing is changed on the instance until it passes, so a failed
// check can be retried with the queue intact.
func confirmBooted(ctx context.Context, api vmm.API) error {
	ping, err := api.Ping(ctx)
	if err != nil {
		return fmt.Errorf("connect vmm api: %w", err)
	}

	info, err := api.GetVmInfo(ctx)
	if err != nil {
		return fmt.Errorf("get vm info: %w", err)
	}
	if info.State != vmm.Running {
		return fmt.Errorf("%w: vmm %s reports vm state %s", ErrInvalidState, ping.Version, info.State)
	}

	logger.FromContext(ctx).DebugContext(ctx, "vmm confirmed vm running", "vmm_version", ping.Version, "vmm_pid", ping.Pid)
	return nil
}
