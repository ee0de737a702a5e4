package cloudhypervisor

import (
	"context"
	"testing"

	"github.com/onkernel/devattach/lib/devices"
	"github.com/onkernel/devattach/lib/hypervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func shareFs(tag string) *devices.ShareFsDevice {
	return &devices.ShareFsDevice{
		FsType:   devices.FsTypeVirtioFs,
		MountTag: tag,
		SockPath: "/run/" + tag + ".sock",
	}
}

func tagsOf(t *testing.T, devs []devices.Device) []string {
	t.Helper()
	tags := make([]string, 0, len(devs))
	for _, d := range devs {
		fs, ok := d.(*devices.ShareFsDevice)
		require.True(t, ok, "unexpected device %s", d)
		tags = append(tags, fs.MountTag)
	}
	return tags
}

func TestAddDeviceQueuesBeforeBoot(t *testing.T) {
	api := &fakeAPI{}
	ch := New(Options{VMPath: "/vm/1", APISocket: api})
	ctx := context.Background()

	for _, tag := range []string{"a", "b", "c"} {
		require.NoError(t, ch.AddDevice(ctx, shareFs(tag)))
	}

	assert.Equal(t, []string{"c", "b", "a"}, tagsOf(t, ch.PendingDevices()))
	assert.Zero(t, api.calls(), "no vmm call before boot")
}

func TestAddDeviceQueuesUnsupportedKindBeforeBoot(t *testing.T) {
	ch := New(Options{VMPath: "/vm/1"})
	ctx := context.Background()

	other := &devices.OtherDevice{DeviceKind: "vfio"}
	require.NoError(t, ch.AddDevice(ctx, other))
	require.Len(t, ch.PendingDevices(), 1)
	assert.Same(t, other, ch.PendingDevices()[0])
}

func TestAddDeviceUnsupportedKindWhileRunning(t *testing.T) {
	ch := New(Options{VMPath: "/vm/1", APISocket: &fakeAPI{}})
	ch.SetState(hypervisor.StateRunning)

	err := ch.AddDevice(context.Background(), &devices.OtherDevice{DeviceKind: "vfio"})
	require.ErrorIs(t, err, devices.ErrUnsupportedKind)
	assert.Contains(t, err.Error(), "vfio")
}

func TestAddDeviceShareFsWhileRunning(t *testing.T) {
	api := &fakeAPI{}
	ch := New(Options{VMPath: "/vm/1", APISocket: api})
	ch.SetState(hypervisor.StateRunning)

	dev := &devices.ShareFsDevice{
		FsType:    devices.FsTypeVirtioFs,
		MountTag:  "kataShared",
		SockPath:  "virtiofsd.sock",
		QueueNum:  2,
		QueueSize: 512,
	}
	require.NoError(t, ch.AddDevice(context.Background(), dev))

	require.Len(t, api.added, 1)
	cfg := api.added[0]
	assert.Equal(t, "kataShared", cfg.Tag)
	assert.Equal(t, "/vm/1/virtiofsd.sock", cfg.Socket)
	assert.Equal(t, 2, cfg.NumQueues)
	assert.Equal(t, uint16(512), cfg.QueueSize)
	assert.Equal(t, 1, api.clones)
	assert.Nil(t, ch.PendingDevices(), "running attach never touches the queue")
}

func TestAddDeviceShareFsErrors(t *testing.T) {
	tests := []struct {
		name    string
		api     *fakeAPI
		noAPI   bool
		dev     *devices.ShareFsDevice
		wantErr error
	}{
		{
			name:    "unsupported fs type",
			api:     &fakeAPI{},
			dev:     &devices.ShareFsDevice{FsType: "9p", MountTag: "x", SockPath: "/s"},
			wantErr: devices.ErrUnsupportedFsType,
		},
		{
			name:    "missing socket",
			noAPI:   true,
			dev:     shareFs("x"),
			wantErr: hypervisor.ErrMissingSocket,
		},
		{
			name:    "queue size overflow",
			api:     &fakeAPI{},
			dev:     &devices.ShareFsDevice{FsType: devices.FsTypeVirtioFs, MountTag: "x", SockPath: "/s", QueueNum: 1, QueueSize: 70000},
			wantErr: hypervisor.ErrQueueSizeOverflow,
		},
		{
			name:    "clone failure",
			api:     &fakeAPI{cloneErr: errFakeAPI},
			dev:     shareFs("x"),
			wantErr: errFakeAPI,
		},
		{
			name:    "vmm failure",
			api:     &fakeAPI{failTags: map[string]bool{"x": true}},
			dev:     shareFs("x"),
			wantErr: errFakeAPI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{VMPath: "/vm/1"}
			if !tt.noAPI {
				opts.APISocket = tt.api
			}
			ch := New(opts)
			ch.SetState(hypervisor.StateRunning)

			err := ch.AddDevice(context.Background(), tt.dev)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.api != nil {
				assert.Empty(t, tt.api.added)
			}
		})
	}
}

func TestAddDeviceHybridVsockIsNoop(t *testing.T) {
	api := &fakeAPI{}
	ch := New(Options{VMPath: "/vm/1", APISocket: api})
	ch.SetState(hypervisor.StateRunning)

	err := ch.AddDevice(context.Background(), &devices.HybridVsockDevice{ID: "vsock0", GuestCID: 3, UdsPath: "kata.hvsock"})
	require.NoError(t, err)
	assert.Zero(t, api.calls())
}

func TestReplayRequiresRunning(t *testing.T) {
	ch := New(Options{VMPath: "/vm/1", APISocket: &fakeAPI{}})
	ctx := context.Background()
	require.NoError(t, ch.AddDevice(ctx, shareFs("a")))

	for _, state := range []hypervisor.VMState{hypervisor.StateCreated, hypervisor.StatePaused, hypervisor.StateShutdown} {
		ch.SetState(state)
		err := ch.ReplayPendingDevices(ctx)
		require.ErrorIs(t, err, hypervisor.ErrInvalidState, "state %s", state)
		assert.Equal(t, []string{"a"}, tagsOf(t, ch.PendingDevices()), "queue untouched in state %s", state)
	}
}

func TestReplayAppliesNewestFirstAndDrains(t *testing.T) {
	api := &fakeAPI{}
	ch := New(Options{VMPath: "/vm/1", APISocket: api})
	ctx := context.Background()

	for _, tag := range []string{"a", "b", "c"} {
		require.NoError(t, ch.AddDevice(ctx, shareFs(tag)))
	}

	ch.SetState(hypervisor.StateRunning)
	require.NoError(t, ch.ReplayPendingDevices(ctx))

	assert.Equal(t, []string{"c", "b", "a"}, api.addedTags())
	assert.Empty(t, ch.PendingDevices())
}

func TestReplayEmptyQueue(t *testing.T) {
	api := &fakeAPI{}
	ch := New(Options{VMPath: "/vm/1", APISocket: api})
	ch.SetState(hypervisor.StateRunning)

	require.NoError(t, ch.ReplayPendingDevices(context.Background()))
	assert.Zero(t, api.calls())
}

func TestReplayStopsOnFirstFailure(t *testing.T) {
	api := &fakeAPI{failTags: map[string]bool{"b": true}}
	ch := New(Options{VMPath: "/vm/1", APISocket: api})
	ctx := context.Background()

	for _, tag := range []string{"a", "b", "c"} {
		require.NoError(t, ch.AddDevice(ctx, shareFs(tag)))
	}

	ch.SetState(hypervisor.StateRunning)
	err := ch.ReplayPendingDevices(ctx)
	require.ErrorIs(t, err, errFakeAPI)
	assert.Contains(t, err.Error(), "add_device")

	// c applied before the failure stays attached, a is dropped.
	assert.Equal(t, []string{"c"}, api.addedTags())
	assert.Empty(t, ch.PendingDevices())

	// A second replay has nothing left to do.
	require.NoError(t, ch.ReplayPendingDevices(ctx))
	assert.Equal(t, []string{"c"}, api.addedTags())
}

func TestReplayUnsupportedKindFails(t *testing.T) {
	ch := New(Options{VMPath: "/vm/1", APISocket: &fakeAPI{}})
	ctx := context.Background()

	require.NoError(t, ch.AddDevice(ctx, &devices.OtherDevice{DeviceKind: "vfio"}))
	ch.SetState(hypervisor.StateRunning)

	err := ch.ReplayPendingDevices(ctx)
	require.ErrorIs(t, err, devices.ErrUnsupportedKind)
}

func TestRemoveDeviceIsNoop(t *testing.T) {
	api := &fakeAPI{}
	ch := New(Options{VMPath: "/vm/1", APISocket: api})
	ch.SetState(hypervisor.StateRunning)

	require.NoError(t, ch.RemoveDevice(context.Background(), shareFs("a")))
	require.NoError(t, ch.RemoveDevice(context.Background(), &devices.OtherDevice{DeviceKind: "vfio"}))
	assert.Zero(t, api.calls())
}

func TestDeviceMetrics(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	m, err := NewMetrics(provider.Meter("test"), nil)
	require.NoError(t, err)

	api := &fakeAPI{failTags: map[string]bool{"bad": true}}
	ch := New(Options{VMPath: "/vm/1", APISocket: api, Metrics: m})
	ctx := context.Background()

	require.NoError(t, ch.AddDevice(ctx, shareFs("ok")))
	require.NoError(t, ch.AddDevice(ctx, shareFs("bad")))
	ch.SetState(hypervisor.StateRunning)
	require.Error(t, ch.ReplayPendingDevices(ctx))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			found[md.Name] = true
			if md.Name == "devattach_devices_queued_total" {
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				var total int64
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
				assert.Equal(t, int64(2), total)
			}
		}
	}
	assert.True(t, found["devattach_devices_queued_total"])
	assert.True(t, found["devattach_devices_attached_total"])
	assert.True(t, found["devattach_replay_duration_seconds"])
}

func TestNewMetricsNilMeter(t *testing.T) {
	m, err := NewMetrics(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}
