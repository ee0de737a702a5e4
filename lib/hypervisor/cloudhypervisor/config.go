package cloudhypervisor

import (
	"fmt"
	"math"
	"strings"

	"github.com/onkernel/devattach/lib/devices"
	"github.com/onkernel/devattach/lib/hypervisor"
	"github.com/onkernel/devattach/lib/paths"
	"github.com/onkernel/devattach/lib/vmm"
)

const (
	defaultNumQueues = 1
	defaultQueueSize = 1024
)

// ShareFsSettings pairs a shared filesystem request with the VM working
// directory it is resolved against.
//
// Both the hot-plug path and the boot-time path translate through
// ToFsConfig, so queue defaults and socket resolution are always identical.
type ShareFsSettings struct {
	Device *devices.ShareFsDevice
	VMPath string
}

// NewShareFsSettings creates translation settings for a device.
func NewShareFsSettings(dev *devices.ShareFsDevice, vmPath string) ShareFsSettings {
	return ShareFsSettings{Device: dev, VMPath: vmPath}
}

// ToFsConfig converts the request to Cloud Hypervisor's vmm.FsConfig.
func (s ShareFsSettings) ToFsConfig() (vmm.FsConfig, error) {
	numQueues, queueSize, err := queueSettings(s.Device)
	if err != nil {
		return vmm.FsConfig{}, err
	}

	socketPath, err := resolveSocketPath(s.VMPath, s.Device.SockPath)
	if err != nil {
		return vmm.FsConfig{}, err
	}

	return vmm.FsConfig{
		Tag:       s.Device.MountTag,
		Socket:    socketPath,
		NumQueues: numQueues,
		QueueSize: queueSize,
	}, nil
}

// queueSettings applies the queue defaults.
// QueueNum == 0 selects 1 queue of 1024 entries and ignores QueueSize.
// Otherwise QueueSize must fit in 16 bits; zero falls back to 1024.
func queueSettings(dev *devices.ShareFsDevice) (int, uint16, error) {
	if dev.QueueNum == 0 {
		return defaultNumQueues, defaultQueueSize, nil
	}

	if dev.QueueNum > math.MaxInt32 {
		return 0, 0, fmt.Errorf("%w: queue_num %d", hypervisor.ErrQueueSizeOverflow, dev.QueueNum)
	}
	if dev.QueueSize > math.MaxUint16 {
		return 0, 0, fmt.Errorf("%w: queue_size %d exceeds %d", hypervisor.ErrQueueSizeOverflow, dev.QueueSize, math.MaxUint16)
	}

	queueSize := uint16(dev.QueueSize)
	if queueSize == 0 {
		queueSize = defaultQueueSize
	}
	return int(dev.QueueNum), queueSize, nil
}

// resolveSocketPath keeps absolute paths verbatim and confines relative ones
// to the VM working directory.
func resolveSocketPath(vmPath, sockPath string) (string, error) {
	if strings.HasPrefix(sockPath, "/") {
		return sockPath, nil
	}
	resolved, err := paths.ScopedJoin(vmPath, sockPath)
	if err != nil {
		return "", fmt.Errorf("resolve socket path: %w", err)
	}
	return resolved, nil
}
