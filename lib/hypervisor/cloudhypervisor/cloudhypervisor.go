// Package cloudhypervisor implements hypervisor.DeviceAttacher for the
// Cloud Hypervisor VMM.
package cloudhypervisor

import (
	"github.com/onkernel/devattach/lib/devices"
	"github.com/onkernel/devattach/lib/hypervisor"
	"github.com/onkernel/devattach/lib/vmm"
)

func init() {
	hypervisor.RegisterSocketName(hypervisor.TypeCloudHypervisor, "ch.sock")
}

// Options configures a CloudHypervisor device attacher.
type Options struct {
	// VMPath is the VM working directory; relative socket paths resolve inside it.
	VMPath string
	// Config holds the boot info. Nil means no hypervisor config was supplied.
	Config *hypervisor.Config
	// APISocket is the VMM control channel, if already established.
	APISocket vmm.API
	// Metrics is optional.
	Metrics *Metrics
}

// CloudHypervisor routes device requests for a single Cloud Hypervisor VM.
//
// Before the VM runs, requests are held in pendingDevices. The slice is nil
// until the first request arrives, so "no queue" and "queue without share-fs
// entries" stay distinguishable for GetSharedFsDevices.
type CloudHypervisor struct {
	state          hypervisor.VMState
	vmPath         string
	config         *hypervisor.Config
	apiSocket      vmm.API
	pendingDevices []devices.Device
	metrics        *Metrics
}

// Verify CloudHypervisor implements the interface
var _ hypervisor.DeviceAttacher = (*CloudHypervisor)(nil)

// New creates a device attacher for a VM that has not booted yet.
func New(opts Options) *CloudHypervisor {
	return &CloudHypervisor{
		state:     hypervisor.StateCreated,
		vmPath:    opts.VMPath,
		config:    opts.Config,
		apiSocket: opts.APISocket,
		metrics:   opts.Metrics,
	}
}

// State returns the VM state.
func (c *CloudHypervisor) State() hypervisor.VMState {
	return c.state
}

// SetState records a state change driven by the VM lifecycle owner.
func (c *CloudHypervisor) SetState(state hypervisor.VMState) {
	c.state = state
}

// SetAPISocket installs the VMM control channel.
func (c *CloudHypervisor) SetAPISocket(api vmm.API) {
	c.apiSocket = api
}

// PendingDevices returns a copy of the queue, most recent request first.
func (c *CloudHypervisor) PendingDevices() []devices.Device {
	if c.pendingDevices == nil {
		return nil
	}
	out := make([]devices.Device, len(c.pendingDevices))
	copy(out, c.pendingDevices)
	return out
}
