package devices

import "fmt"

// Kind identifies the type of a device request
type Kind string

const (
	// KindShareFs is a shared filesystem (virtio-fs) mount
	KindShareFs Kind = "share_fs"
	// KindHybridVsock is a socket-backed guest/host channel
	KindHybridVsock Kind = "hybrid_vsock"
)

// FsTypeVirtioFs is the only shared filesystem type the VMM accepts.
const FsTypeVirtioFs = "virtio-fs"

// Device is a request to attach a device to a VM.
//
// The set of variants is closed: ShareFsDevice, HybridVsockDevice and
// OtherDevice. OtherDevice carries any kind this package has no handler for,
// so it can still be queued before boot and rejected when applied.
type Device interface {
	Kind() Kind
	isDevice()
}

// ShareFsDevice exposes a host directory to the guest through a vhost-user
// filesystem daemon listening on SockPath.
type ShareFsDevice struct {
	FsType    string `json:"fs_type"`
	MountTag  string `json:"mount_tag"`
	SockPath  string `json:"sock_path"`
	QueueNum  uint64 `json:"queue_num"`
	QueueSize uint64 `json:"queue_size"`
}

// HybridVsockDevice is a vsock channel multiplexed over a host unix socket.
type HybridVsockDevice struct {
	ID       string `json:"id"`
	GuestCID uint32 `json:"guest_cid"`
	UdsPath  string `json:"uds_path"`
}

// OtherDevice is any device kind without a dedicated variant.
type OtherDevice struct {
	DeviceKind Kind `json:"kind"`
}

func (*ShareFsDevice) Kind() Kind     { return KindShareFs }
func (*HybridVsockDevice) Kind() Kind { return KindHybridVsock }
func (d *OtherDevice) Kind() Kind     { return d.DeviceKind }

func (*ShareFsDevice) isDevice()     {}
func (*HybridVsockDevice) isDevice() {}
func (*OtherDevice) isDevice()       {}

func (d *ShareFsDevice) String() string {
	return fmt.Sprintf("share_fs(tag=%s, type=%s, sock=%s)", d.MountTag, d.FsType, d.SockPath)
}

func (d *HybridVsockDevice) String() string {
	return fmt.Sprintf("hybrid_vsock(id=%s, cid=%d, uds=%s)", d.ID, d.GuestCID, d.UdsPath)
}

func (d *OtherDevice) String() string {
	return string(d.DeviceKind)
}
