package instances

import (
	"time"

	"github.com/onkernel/devattach/lib/hypervisor"
	"github.com/onkernel/devattach/lib/vmm"
)

// State is the lifecycle state of a VM as driven through this package.
type State = hypervisor.VMState

// StoredMetadata is the persisted part of an instance.
type StoredMetadata struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	// VMPath is the VM working directory; relative socket paths of shared
	// filesystem requests are confined to it.
	VMPath string `json:"vm_path"`

	// SocketPath is the Cloud Hypervisor API socket.
	SocketPath string `json:"socket_path"`

	// Boot is nil when no hypervisor config was supplied.
	Boot *hypervisor.BootInfo `json:"boot,omitempty"`

	State State `json:"state"`
}

// Instance is an instance with its derived fields.
type Instance struct {
	StoredMetadata

	// PendingDevices is the number of device requests waiting for boot.
	PendingDevices int `json:"pending_devices"`
}

// CreateInstanceRequest registers a VM with the device attachment service.
type CreateInstanceRequest struct {
	// Id is generated when empty
	Id   string `json:"id,omitempty"`
	Name string `json:"name"`
	// VMPath defaults to the instance directory under the data dir
	VMPath string `json:"vm_path,omitempty"`
	// SocketPath defaults to ch.sock inside the instance directory
	SocketPath string               `json:"socket_path,omitempty"`
	Boot       *hypervisor.BootInfo `json:"boot,omitempty"`
}

// BootConfig holds the device configuration derived for the VM boot config.
type BootConfig struct {
	// Fs is nil when no device request was queued before boot.
	Fs   []vmm.FsConfig   `json:"fs"`
	Pmem []vmm.PmemConfig `json:"pmem"`
}
