package instances

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/nrednav/cuid2"
	"github.com/onkernel/devattach/lib/hypervisor"
	"github.com/onkernel/devattach/lib/logger"
	"go.opentelemetry.io/otel/trace"
)

// namePattern matches valid instance names and IDs
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]+$`)

// Validate checks the request fields that do not depend on other instances.
func (r CreateInstanceRequest) Validate() error {
	if !namePattern.MatchString(r.Name) {
		return fmt.Errorf("%w: name %q must start with a letter or digit and contain only letters, digits, '_', '.' and '-'", ErrInvalidRequest, r.Name)
	}
	if r.Id != "" && !namePattern.MatchString(r.Id) {
		return fmt.Errorf("%w: id %q contains invalid characters", ErrInvalidRequest, r.Id)
	}
	return nil
}

// CreateInstance registers a VM in the created state.
func (m *manager) CreateInstance(ctx context.Context, req CreateInstanceRequest) (*Instance, error) {
	log := logger.FromContext(ctx)

	if m.metrics != nil && m.metrics.tracer != nil {
		var span trace.Span
		ctx, span = m.metrics.tracer.Start(ctx, "CreateInstance")
		defer span.End()
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := req.Id
	if id == "" {
		id = cuid2.Generate()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[id]; ok {
		return nil, fmt.Errorf("%w: id %q", ErrAlreadyExists, id)
	}
	for _, existing := range m.instances {
		if existing.meta.Name == req.Name {
			return nil, fmt.Errorf("%w: name %q", ErrAlreadyExists, req.Name)
		}
	}

	meta := StoredMetadata{
		Id:         id,
		Name:       req.Name,
		CreatedAt:  time.Now().UTC(),
		VMPath:     req.VMPath,
		SocketPath: req.SocketPath,
		Boot:       req.Boot,
		State:      hypervisor.StateCreated,
	}
	if meta.VMPath == "" {
		meta.VMPath = m.paths.InstanceDir(id)
	}
	if meta.SocketPath == "" {
		meta.SocketPath = m.paths.InstanceSocket(id, hypervisor.SocketNameForType(hypervisor.TypeCloudHypervisor))
	}

	if err := m.ensureDirectories(id); err != nil {
		return nil, err
	}
	if err := m.saveMetadata(&meta); err != nil {
		m.deleteInstanceData(id)
		return nil, err
	}

	inst := &instance{meta: meta, attacher: m.newAttacher(&meta)}
	m.instances[id] = inst

	log.InfoContext(ctx, "instance created", "instance_id", id, "name", meta.Name, "vm_path", meta.VMPath)
	v := inst.view()
	return &v, nil
}

// DeleteInstance removes an instance and its data directory.
// Queued device requests are discarded.
func (m *manager) DeleteInstance(ctx context.Context, id string) error {
	log := logger.FromContext(ctx)

	m.mu.Lock()
	inst, ok := m.instances[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.instances, id)
	m.mu.Unlock()

	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.deleted = true

	dropped := len(inst.attacher.PendingDevices())
	if err := m.deleteInstanceData(id); err != nil {
		log.ErrorContext(ctx, "failed to delete instance data", "instance_id", id, "error", err)
		return err
	}

	log.InfoContext(ctx, "instance deleted", "instance_id", id, "dropped_devices", dropped)
	return nil
}
