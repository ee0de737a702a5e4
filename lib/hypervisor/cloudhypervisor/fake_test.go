package cloudhypervisor

import (
	"context"
	"errors"
	"sync"

	"github.com/onkernel/devattach/lib/vmm"
)

var errFakeAPI = errors.New("fake vmm failure")

// fakeAPI records the calls made through the VMM control channel.
// Clones share the recorder with their parent.
type fakeAPI struct {
	mu       sync.Mutex
	clones   int
	added    []vmm.FsConfig
	cloneErr error
	// failTags makes VmAddFs fail for the listed mount tags.
	failTags map[string]bool
	resp     *vmm.PciDeviceInfo
}

var _ vmm.API = (*fakeAPI)(nil)

func (f *fakeAPI) Clone() (vmm.API, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cloneErr != nil {
		return nil, f.cloneErr
	}
	f.clones++
	return f, nil
}

func (f *fakeAPI) VmAddFs(ctx context.Context, cfg vmm.FsConfig) (*vmm.PciDeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTags[cfg.Tag] {
		return nil, errFakeAPI
	}
	f.added = append(f.added, cfg)
	return f.resp, nil
}

func (f *fakeAPI) GetVmInfo(ctx context.Context) (*vmm.VmInfo, error) {
	return &vmm.VmInfo{State: vmm.Running}, nil
}

func (f *fakeAPI) Ping(ctx context.Context) (*vmm.VmmPingResponse, error) {
	return &vmm.VmmPingResponse{Version: "fake"}, nil
}

func (f *fakeAPI) addedTags() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	tags := make([]string, 0, len(f.added))
	for _, cfg := range f.added {
		tags = append(tags, cfg.Tag)
	}
	return tags
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clones + len(f.added)
}
