// Package hypervisor defines the hypervisor-agnostic types used to attach
// devices to a virtual machine, and the contract each VMM implementation
// (e.g., Cloud Hypervisor) fulfils for device attachment.
package hypervisor

import (
	"context"

	"github.com/onkernel/devattach/lib/devices"
	"github.com/onkernel/devattach/lib/vmm"
)

// Type identifies the hypervisor implementation
type Type string

const (
	// TypeCloudHypervisor is the Cloud Hypervisor VMM
	TypeCloudHypervisor Type = "cloud-hypervisor"
)

// socketNames maps hypervisor types to their socket filenames.
// Registered by each hypervisor package's init() function.
var socketNames = make(map[Type]string)

// RegisterSocketName registers the socket filename for a hypervisor type.
// Called by each hypervisor implementation's init() function.
func RegisterSocketName(t Type, name string) {
	socketNames[t] = name
}

// SocketNameForType returns the socket filename for a hypervisor type.
// Falls back to type + ".sock" if not registered.
func SocketNameForType(t Type) string {
	if name, ok := socketNames[t]; ok {
		return name
	}
	return string(t) + ".sock"
}

// DeviceAttacher routes device requests for one VM.
//
// Implementations are not safe for concurrent use: callers serialize access
// per VM. State is driven from outside through SetState; an attacher never
// changes it on its own.
type DeviceAttacher interface {
	// AddDevice queues the device while the VM is not running, or attaches
	// it immediately through the VMM API once it is.
	AddDevice(ctx context.Context, dev devices.Device) error

	// RemoveDevice is not implemented by any VMM yet and always succeeds.
	// Callers must not assume the device was detached.
	RemoveDevice(ctx context.Context, dev devices.Device) error

	// ReplayPendingDevices attaches every queued device. Call it exactly once,
	// right after the VM reaches the running state.
	ReplayPendingDevices(ctx context.Context) error

	// GetSharedFsDevices consumes the pending queue and returns the shared
	// filesystem entries as boot-time configs. Returns nil when no queue exists.
	GetSharedFsDevices(ctx context.Context) ([]vmm.FsConfig, error)

	// GetBootFile returns the initrd, or the image when no initrd is set.
	GetBootFile(ctx context.Context) (string, error)

	// GetPmemDevices returns the boot file wrapped as a persistent memory device.
	GetPmemDevices(ctx context.Context) ([]vmm.PmemConfig, error)

	// State returns the VM state as last reported by the lifecycle owner.
	State() VMState

	// SetState records a state change driven by the VM lifecycle owner.
	SetState(state VMState)

	// SetAPISocket installs the established VMM control channel.
	SetAPISocket(api vmm.API)

	// PendingDevices returns a copy of the queue, most recent request first.
	PendingDevices() []devices.Device
}
