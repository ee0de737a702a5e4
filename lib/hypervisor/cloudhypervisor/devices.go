package cloudhypervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/onkernel/devattach/lib/devices"
	"github.com/onkernel/devattach/lib/hypervisor"
	"github.com/onkernel/devattach/lib/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AddDevice attaches a device, or queues it if the VM is not running yet.
//
// Queued requests are not inspected: an unsupported kind is accepted here
// and only rejected when it is applied after boot.
func (c *CloudHypervisor) AddDevice(ctx context.Context, dev devices.Device) error {
	if !c.state.IsRunning() {
		// Newest request goes first.
		c.pendingDevices = append([]devices.Device{dev}, c.pendingDevices...)
		c.metrics.recordQueued(ctx, dev.Kind())
		logger.FromContext(ctx).DebugContext(ctx, "queued device until vm is running",
			"kind", dev.Kind(), "state", c.state, "pending", len(c.pendingDevices))
		return nil
	}

	return c.handleAddDevice(ctx, dev)
}

func (c *CloudHypervisor) handleAddDevice(ctx context.Context, dev devices.Device) error {
	ctx, span := c.metrics.startSpan(ctx, "AttachDevice", attribute.String("kind", string(dev.Kind())))
	defer span.End()

	var err error
	switch d := dev.(type) {
	case *devices.ShareFsDevice:
		err = c.handleShareFsDevice(ctx, d)
	case *devices.HybridVsockDevice:
		err = c.handleHybridVsockDevice(ctx, d)
	default:
		err = fmt.Errorf("%w: %s", devices.ErrUnsupportedKind, dev.Kind())
	}

	c.metrics.recordAttach(ctx, dev.Kind(), err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// ReplayPendingDevices attaches the devices queued before boot.
//
// The queue is taken up front and processed newest first: requests
// queued as A, B, C are applied as C, B, A.
// The first failure stops the replay. Devices already attached stay
// attached and the rest of the queue is dropped; nothing is rolled back
// or re-queued.
func (c *CloudHypervisor) ReplayPendingDevices(ctx context.Context) (err error) {
	if !c.state.IsRunning() {
		return fmt.Errorf("%w: cannot handle pending devices with vmm state %s", hypervisor.ErrInvalidState, c.state)
	}

	start := time.Now()
	log := logger.FromContext(ctx)
	ctx, span := c.metrics.startSpan(ctx, "ReplayPendingDevices")
	defer func() {
		c.metrics.recordReplay(ctx, start, err)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	pending := c.pendingDevices
	c.pendingDevices = nil
	if len(pending) == 0 {
		return nil
	}

	log.InfoContext(ctx, "replaying devices queued before boot", "count", len(pending))
	for len(pending) > 0 {
		dev := pending[0]
		pending = pending[1:]

		if err := c.AddDevice(ctx, dev); err != nil {
			log.ErrorContext(ctx, "failed to replay device, dropping the rest of the queue",
				"kind", dev.Kind(), "dropped", len(pending), "error", err)
			return fmt.Errorf("add_device: %w", err)
		}
	}
	return nil
}

// RemoveDevice is not implemented and always succeeds.
// The device stays attached; callers must not rely on it being gone.
func (c *CloudHypervisor) RemoveDevice(ctx context.Context, dev devices.Device) error {
	logger.FromContext(ctx).DebugContext(ctx, "device removal not implemented, ignoring", "kind", dev.Kind())
	return nil
}

func (c *CloudHypervisor) handleShareFsDevice(ctx context.Context, dev *devices.ShareFsDevice) error {
	if dev.FsType != devices.FsTypeVirtioFs {
		return fmt.Errorf("%w: %q", devices.ErrUnsupportedFsType, dev.FsType)
	}

	if c.apiSocket == nil {
		return hypervisor.ErrMissingSocket
	}

	fsConfig, err := NewShareFsSettings(dev, c.vmPath).ToFsConfig()
	if err != nil {
		return err
	}

	client, err := c.apiSocket.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone socket: %w", err)
	}

	resp, err := client.VmAddFs(ctx, fsConfig)
	if err != nil {
		return err
	}

	if resp != nil {
		logger.FromContext(ctx).DebugContext(ctx, "fs add response",
			"tag", fsConfig.Tag, "id", resp.Id, "bdf", resp.Bdf)
	}
	return nil
}

// handleHybridVsockDevice is a stub: Cloud Hypervisor takes its vsock device
// from the boot config, so there is nothing to hot-plug. It does not validate
// or apply the request.
func (c *CloudHypervisor) handleHybridVsockDevice(ctx context.Context, dev *devices.HybridVsockDevice) error {
	return nil
}
