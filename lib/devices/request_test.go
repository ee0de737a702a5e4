package devices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Device
		wantErr error
	}{
		{
			name:  "share fs",
			input: `{"kind":"share_fs","config":{"fs_type":"virtio-fs","mount_tag":"kataShared","sock_path":"virtiofsd.sock","queue_num":4,"queue_size":256}}`,
			want: &ShareFsDevice{
				FsType:    FsTypeVirtioFs,
				MountTag:  "kataShared",
				SockPath:  "virtiofsd.sock",
				QueueNum:  4,
				QueueSize: 256,
			},
		},
		{
			name:  "hybrid vsock",
			input: `{"kind":"hybrid_vsock","config":{"id":"vsock0","guest_cid":3,"uds_path":"/run/vm/kata.hvsock"}}`,
			want:  &HybridVsockDevice{ID: "vsock0", GuestCID: 3, UdsPath: "/run/vm/kata.hvsock"},
		},
		{
			name:  "unknown kind is kept opaque",
			input: `{"kind":"vfio"}`,
			want:  &OtherDevice{DeviceKind: "vfio"},
		},
		{
			name:    "missing kind",
			input:   `{"config":{}}`,
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "missing config",
			input:   `{"kind":"share_fs"}`,
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "unknown field",
			input:   `{"kind":"share_fs","config":{"tag":"x"}}`,
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "malformed json",
			input:   `{"kind":`,
			wantErr: ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequest([]byte(tt.input))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRequest_ShareFs(t *testing.T) {
	dev := &ShareFsDevice{FsType: FsTypeVirtioFs, MountTag: "tag", SockPath: "/run/fs.sock"}

	req, err := NewRequest(dev)
	require.NoError(t, err)
	assert.Equal(t, KindShareFs, req.Kind)

	back, err := req.Device()
	require.NoError(t, err)
	assert.Equal(t, dev, back)
}

func TestNewRequest_Other(t *testing.T) {
	req, err := NewRequest(&OtherDevice{DeviceKind: "block"})
	require.NoError(t, err)
	assert.Equal(t, Kind("block"), req.Kind)
	assert.Empty(t, req.Config)
}

func TestDeviceKind(t *testing.T) {
	assert.Equal(t, KindShareFs, (&ShareFsDevice{}).Kind())
	assert.Equal(t, KindHybridVsock, (&HybridVsockDevice{}).Kind())
	assert.Equal(t, Kind("network"), (&OtherDevice{DeviceKind: "network"}).Kind())
}
