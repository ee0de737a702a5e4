package cloudhypervisor

import (
	"context"

	"github.com/onkernel/devattach/lib/devices"
	"github.com/onkernel/devattach/lib/hypervisor"
	"github.com/onkernel/devattach/lib/logger"
	"github.com/onkernel/devattach/lib/vmm"
)

// GetSharedFsDevices drains the pending queue and translates its shared
// filesystem requests into boot-time configs, in queue order.
//
// This is a destructive read. Other device kinds are discarded, and a second
// call returns nil because the queue is gone. A nil result means no queue
// existed; an empty non-nil slice means the queue held no shared filesystems.
func (c *CloudHypervisor) GetSharedFsDevices(ctx context.Context) ([]vmm.FsConfig, error) {
	pending := c.pendingDevices
	c.pendingDevices = nil
	if pending == nil {
		return nil, nil
	}

	log := logger.FromContext(ctx)
	configs := make([]vmm.FsConfig, 0, len(pending))
	for _, dev := range pending {
		fs, ok := dev.(*devices.ShareFsDevice)
		if !ok {
			log.DebugContext(ctx, "skipping non share-fs device in boot config", "kind", dev.Kind())
			continue
		}
		cfg, err := NewShareFsSettings(fs, c.vmPath).ToFsConfig()
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// GetBootFile returns the initrd path if set, otherwise the boot image.
func (c *CloudHypervisor) GetBootFile(ctx context.Context) (string, error) {
	if c.config == nil {
		return "", hypervisor.ErrNoConfig
	}

	switch {
	case c.config.BootInfo.Initrd != "":
		return c.config.BootInfo.Initrd, nil
	case c.config.BootInfo.Image != "":
		return c.config.BootInfo.Image, nil
	default:
		return "", hypervisor.ErrMissingBootFile
	}
}

// GetPmemDevices exposes the boot file as a single read-only pmem device.
// Guest writes are discarded and the size is taken from the file.
func (c *CloudHypervisor) GetPmemDevices(ctx context.Context) ([]vmm.PmemConfig, error) {
	file, err := c.GetBootFile(ctx)
	if err != nil {
		return nil, err
	}

	return []vmm.PmemConfig{{
		File:          file,
		DiscardWrites: true,
	}}, nil
}
