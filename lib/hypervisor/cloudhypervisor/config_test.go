package cloudhypervisor

import (
	"context"
	"math"
	"testing"

	"github.com/onkernel/devattach/lib/devices"
	"github.com/onkernel/devattach/lib/hypervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFsConfigQueues(t *testing.T) {
	tests := []struct {
		name      string
		queueNum  uint64
		queueSize uint64
		wantNum   int
		wantSize  uint16
		wantErr   error
	}{
		{name: "defaults", queueNum: 0, queueSize: 0, wantNum: 1, wantSize: 1024},
		{name: "size ignored without queue count", queueNum: 0, queueSize: 70000, wantNum: 1, wantSize: 1024},
		{name: "explicit", queueNum: 4, queueSize: 256, wantNum: 4, wantSize: 256},
		{name: "max size", queueNum: 1, queueSize: math.MaxUint16, wantNum: 1, wantSize: math.MaxUint16},
		{name: "zero size gets default", queueNum: 2, queueSize: 0, wantNum: 2, wantSize: 1024},
		{name: "size overflow", queueNum: 1, queueSize: 70000, wantErr: hypervisor.ErrQueueSizeOverflow},
		{name: "count overflow", queueNum: math.MaxInt32 + 1, queueSize: 8, wantErr: hypervisor.ErrQueueSizeOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &devices.ShareFsDevice{
				FsType:    devices.FsTypeVirtioFs,
				MountTag:  "tag",
				SockPath:  "/abs/sock",
				QueueNum:  tt.queueNum,
				QueueSize: tt.queueSize,
			}
			cfg, err := NewShareFsSettings(dev, "/vm/1").ToFsConfig()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNum, cfg.NumQueues)
			assert.Equal(t, tt.wantSize, cfg.QueueSize)
			assert.Equal(t, "tag", cfg.Tag)
		})
	}
}

func TestToFsConfigSocketPath(t *testing.T) {
	tests := []struct {
		name     string
		sockPath string
		want     string
	}{
		{name: "absolute kept verbatim", sockPath: "/abs/sock", want: "/abs/sock"},
		{name: "relative resolved in vm dir", sockPath: "rel/sock", want: "/vm/1/rel/sock"},
		{name: "escape clamped to vm dir", sockPath: "../../etc/sock", want: "/vm/1/etc/sock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &devices.ShareFsDevice{FsType: devices.FsTypeVirtioFs, MountTag: "t", SockPath: tt.sockPath}
			cfg, err := NewShareFsSettings(dev, "/vm/1").ToFsConfig()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Socket)
		})
	}
}

// The hot-plug path and the boot-time path must produce the same config
// for the same request.
func TestLiveAndBootTranslationMatch(t *testing.T) {
	requests := []*devices.ShareFsDevice{
		{FsType: devices.FsTypeVirtioFs, MountTag: "defaults", SockPath: "/abs/sock"},
		{FsType: devices.FsTypeVirtioFs, MountTag: "explicit", SockPath: "rel/sock", QueueNum: 4, QueueSize: 256},
	}

	for _, req := range requests {
		t.Run(req.MountTag, func(t *testing.T) {
			ctx := context.Background()

			api := &fakeAPI{}
			live := New(Options{VMPath: "/vm/1", APISocket: api})
			live.SetState(hypervisor.StateRunning)
			require.NoError(t, live.AddDevice(ctx, req))
			require.Len(t, api.added, 1)

			boot := New(Options{VMPath: "/vm/1"})
			require.NoError(t, boot.AddDevice(ctx, req))
			configs, err := boot.GetSharedFsDevices(ctx)
			require.NoError(t, err)
			require.Len(t, configs, 1)

			assert.Equal(t, api.added[0], configs[0])
		})
	}
}
