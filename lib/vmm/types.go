package vmm

// Wire records of the Cloud Hypervisor HTTP API (v0.3.0 schema).

// FsConfig is the body of PUT /vm.add-fs and the fs entries of a VM config.
type FsConfig struct {
	Tag        string  `json:"tag"`
	Socket     string  `json:"socket"`
	NumQueues  int     `json:"num_queues"`
	QueueSize  uint16  `json:"queue_size"`
	PciSegment int16   `json:"pci_segment,omitempty"`
	Id         *string `json:"id,omitempty"`
}

// PmemConfig describes a persistent memory device backed by a host file.
type PmemConfig struct {
	File          string  `json:"file"`
	Size          *int64  `json:"size,omitempty"`
	Iommu         bool    `json:"iommu"`
	DiscardWrites bool    `json:"discard_writes"`
	PciSegment    int16   `json:"pci_segment,omitempty"`
	Id            *string `json:"id,omitempty"`
}

// PciDeviceInfo is returned by hot-plug endpoints.
type PciDeviceInfo struct {
	Id  string `json:"id"`
	Bdf string `json:"bdf"`
}

// VmInfoState is the VM state reported by GET /vm.info.
type VmInfoState string

const (
	Created  VmInfoState = "Created"
	Running  VmInfoState = "Running"
	Shutdown VmInfoState = "Shutdown"
	Paused   VmInfoState = "Paused"
)

// VmInfo is the subset of GET /vm.info this client decodes.
type VmInfo struct {
	State            VmInfoState `json:"state"`
	MemoryActualSize *int64      `json:"memory_actual_size,omitempty"`
}

// VmmPingResponse is returned by GET /vmm.ping.
type VmmPingResponse struct {
	BuildVersion string    `json:"build_version,omitempty"`
	Version      string    `json:"version"`
	Pid          int64     `json:"pid,omitempty"`
	Features     *[]string `json:"features,omitempty"`
}
