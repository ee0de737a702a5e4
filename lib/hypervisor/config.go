package hypervisor

// Config is the hypervisor configuration read at boot.
type Config struct {
	BootInfo BootInfo
}

// BootInfo names the guest boot artifacts. An empty string means unset.
type BootInfo struct {
	// Image is the guest boot image (e.g., a rootfs image served as pmem)
	Image string `json:"image,omitempty"`
	// Initrd takes precedence over Image when both are set
	Initrd string `json:"initrd,omitempty"`
}

// VMState represents the VM execution state
type VMState string

const (
	// StateCreated means the VM is configured but not running
	StateCreated VMState = "created"
	// StateRunning means the VM is actively executing
	StateRunning VMState = "running"
	// StatePaused means the VM execution is suspended
	StatePaused VMState = "paused"
	// StateShutdown means the VM has stopped but VMM exists
	StateShutdown VMState = "shutdown"
)

// String returns the string representation of the state
func (s VMState) String() string {
	return string(s)
}

// IsRunning reports whether devices can be hot-plugged in this state.
// Every other state queues device requests.
func (s VMState) IsRunning() bool {
	return s == StateRunning
}
