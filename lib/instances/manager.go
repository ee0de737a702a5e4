// Package instances keeps one device attacher per VM and drives the VM state
// changes that matter for device attachment.
package instances

import (
	"context"
	"fmt"
	"sync"

	"github.com/onkernel/devattach/lib/devices"
	"github.com/onkernel/devattach/lib/hypervisor"
	"github.com/onkernel/devattach/lib/hypervisor/cloudhypervisor"
	"github.com/onkernel/devattach/lib/logger"
	"github.com/onkernel/devattach/lib/paths"
	"github.com/onkernel/devattach/lib/vmm"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Manager handles the device attachment side of the VM lifecycle
type Manager interface {
	ListInstances(ctx context.Context) ([]Instance, error)
	CreateInstance(ctx context.Context, req CreateInstanceRequest) (*Instance, error)
	GetInstance(ctx context.Context, id string) (*Instance, error)
	DeleteInstance(ctx context.Context, id string) error

	// Resolve looks up an instance by ID, name, or unique ID prefix and
	// returns its ID.
	Resolve(ctx context.Context, idOrName string) (string, error)

	// AttachDevice attaches a device, or queues it until the VM runs.
	// queued reports which of the two happened.
	AttachDevice(ctx context.Context, id string, dev devices.Device) (queued bool, err error)
	DetachDevice(ctx context.Context, id string, dev devices.Device) error
	PendingDevices(ctx context.Context, id string) ([]devices.Device, error)

	// MarkRunning records that the VM finished booting, connects to its API
	// socket and replays the queued devices.
	MarkRunning(ctx context.Context, id string) (*Instance, error)

	// TakeBootConfig derives the device part of the VM boot config. It
	// consumes the pending queue.
	TakeBootConfig(ctx context.Context, id string) (*BootConfig, error)
}

// ClientFactory opens the VMM control channel for a socket path.
type ClientFactory func(socketPath string) (vmm.API, error)

// DefaultClientFactory connects to Cloud Hypervisor over its HTTP API socket.
func DefaultClientFactory(socketPath string) (vmm.API, error) {
	client, err := vmm.NewVMM(socketPath)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// instance pairs stored metadata with the attacher that owns its queue.
// mu serializes every call into the attacher.
type instance struct {
	mu       sync.Mutex
	meta     StoredMetadata
	attacher hypervisor.DeviceAttacher
	deleted  bool
}

type manager struct {
	paths           *paths.Paths
	newClient       ClientFactory
	attacherMetrics *cloudhypervisor.Metrics
	metrics         *Metrics

	mu        sync.RWMutex
	instances map[string]*instance
}

// NewManager creates a new instance manager and loads the instances stored
// under the data directory. Pending device queues are kept in memory only,
// so instances loaded from disk start with an empty queue.
func NewManager(p *paths.Paths, newClient ClientFactory, meter metric.Meter, tracer trace.Tracer) (Manager, error) {
	if newClient == nil {
		newClient = DefaultClientFactory
	}

	m := &manager{
		paths:     p,
		newClient: newClient,
		instances: make(map[string]*instance),
	}

	// Initialize metrics if meter is provided
	if meter != nil {
		metrics, err := newInstanceMetrics(meter, tracer, m)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		m.metrics = metrics

		attacherMetrics, err := cloudhypervisor.NewMetrics(meter, tracer)
		if err != nil {
			return nil, fmt.Errorf("create attacher metrics: %w", err)
		}
		m.attacherMetrics = attacherMetrics
	}

	if err := m.loadInstances(); err != nil {
		return nil, fmt.Errorf("load instances: %w", err)
	}

	return m, nil
}

func (m *manager) newAttacher(meta *StoredMetadata) hypervisor.DeviceAttacher {
	var cfg *hypervisor.Config
	if meta.Boot != nil {
		cfg = &hypervisor.Config{BootInfo: *meta.Boot}
	}
	return cloudhypervisor.New(cloudhypervisor.Options{
		VMPath:  meta.VMPath,
		Config:  cfg,
		Metrics: m.attacherMetrics,
	})
}

// loadInstances restores the registry from metadata on disk.
func (m *manager) loadInstances() error {
	ids, err := m.listMetadataFiles()
	if err != nil {
		return err
	}

	for _, id := range ids {
		meta, err := m.loadMetadata(id)
		if err != nil {
			// Skip instances with invalid metadata
			logger.FromContext(context.Background()).Warn("skipping instance with invalid metadata", "id", id, "error", err)
			continue
		}

		attacher := m.newAttacher(meta)
		attacher.SetState(meta.State)
		if meta.State.IsRunning() {
			api, err := m.newClient(meta.SocketPath)
			if err != nil {
				logger.FromContext(context.Background()).Warn("failed to reconnect vmm api", "instance_id", id, "error", err)
			} else {
				attacher.SetAPISocket(api)
			}
		}

		m.instances[id] = &instance{meta: *meta, attacher: attacher}
	}
	return nil
}

// lookup returns the registry entry for an exact ID.
func (m *manager) lookup(id string) (*instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.instances[id]
	if !ok {
		return nil, ErrNotFound
	}
	return inst, nil
}

// withInstance runs fn with the instance lock held.
func (m *manager) withInstance(id string, fn func(inst *instance) error) error {
	inst, err := m.lookup(id)
	if err != nil {
		return err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.deleted {
		return ErrNotFound
	}
	return fn(inst)
}

func (inst *instance) view() Instance {
	return Instance{
		StoredMetadata: inst.meta,
		PendingDevices: len(inst.attacher.PendingDevices()),
	}
}

// snapshot returns a view of every instance.
func (m *manager) snapshot() []Instance {
	m.mu.RLock()
	entries := make([]*instance, 0, len(m.instances))
	for _, inst := range m.instances {
		entries = append(entries, inst)
	}
	m.mu.RUnlock()

	result := make([]Instance, 0, len(entries))
	for _, inst := range entries {
		inst.mu.Lock()
		if !inst.deleted {
			result = append(result, inst.view())
		}
		inst.mu.Unlock()
	}
	return result
}
