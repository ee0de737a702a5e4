package instances

import (
	"context"

	"github.com/onkernel/devattach/lib/devices"
	"github.com/onkernel/devattach/lib/logger"
)

// AttachDevice routes a device request to the instance's attacher.
func (m *manager) AttachDevice(ctx context.Context, id string, dev devices.Device) (bool, error) {
	var queued bool
	err := m.withInstance(id, func(inst *instance) error {
		queued = !inst.attacher.State().IsRunning()
		return inst.attacher.AddDevice(ctx, dev)
	})
	if err != nil {
		logger.FromContext(ctx).ErrorContext(ctx, "failed to attach device", "instance_id", id, "kind", dev.Kind(), "error", err)
		return false, err
	}

	logger.FromContext(ctx).InfoContext(ctx, "device accepted", "instance_id", id, "kind", dev.Kind(), "queued", queued)
	return queued, nil
}

// DetachDevice forwards to the attacher, which does not support removal yet.
func (m *manager) DetachDevice(ctx context.Context, id string, dev devices.Device) error {
	return m.withInstance(id, func(inst *instance) error {
		return inst.attacher.RemoveDevice(ctx, dev)
	})
}

// PendingDevices returns the queued requests, most recent first.
func (m *manager) PendingDevices(ctx context.Context, id string) ([]devices.Device, error) {
	var pending []devices.Device
	err := m.withInstance(id, func(inst *instance) error {
		pending = inst.attacher.PendingDevices()
		return nil
	})
	return pending, err
}

// TakeBootConfig derives the boot-time share-fs and pmem devices.
// The pmem derivation runs first and does not touch the queue, so when the
// boot file is missing the queued requests are kept. On success the queue is
// consumed.
func (m *manager) TakeBootConfig(ctx context.Context, id string) (*BootConfig, error) {
	var cfg BootConfig
	err := m.withInstance(id, func(inst *instance) error {
		pmem, err := inst.attacher.GetPmemDevices(ctx)
		if err != nil {
			return err
		}

		fs, err := inst.attacher.GetSharedFsDevices(ctx)
		if err != nil {
			return err
		}
		cfg.Fs = fs
		cfg.Pmem = pmem
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).InfoContext(ctx, "derived boot config", "instance_id", id, "fs", len(cfg.Fs), "pmem", len(cfg.Pmem))
	return &cfg, nil
}
