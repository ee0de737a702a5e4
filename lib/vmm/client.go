package vmm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

var (
	// ErrAPIFailure is returned when the VMM answers with a non-2xx status
	ErrAPIFailure = errors.New("vmm api request failed")

	// ErrSocketUnavailable is returned when the API socket cannot be used
	ErrSocketUnavailable = errors.New("vmm api socket unavailable")
)

const apiBaseURL = "http://localhost/api/v1"

// API is the subset of the Cloud Hypervisor control API used by this module.
type API interface {
	// Clone returns an independent handle to the same API socket.
	Clone() (API, error)

	// VmAddFs hot-plugs a virtio-fs device into a running VM.
	// A nil PciDeviceInfo with a nil error means the VMM sent no body.
	VmAddFs(ctx context.Context, cfg FsConfig) (*PciDeviceInfo, error)

	// GetVmInfo returns the VM state as seen by the VMM.
	GetVmInfo(ctx context.Context) (*VmInfo, error)

	// Ping checks that the VMM answers on its socket.
	Ping(ctx context.Context) (*VmmPingResponse, error)
}

// VMM is an HTTP client for the Cloud Hypervisor API socket
type VMM struct {
	httpClient *http.Client
	socketPath string
}

// Verify VMM implements the interface
var _ API = (*VMM)(nil)

// metricsRoundTripper records every request, including failed dials.
type metricsRoundTripper struct {
	base http.RoundTripper
}

func (m *metricsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := m.base.RoundTrip(req)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	VMMMetrics.record(req.Context(), endpointOf(req.URL.Path), start, statusCode, err)

	return resp, err
}

// NewVMM creates a Cloud Hypervisor client for an existing VMM socket.
// No connection is made until the first request.
func NewVMM(socketPath string) (*VMM, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("%w: empty socket path", ErrSocketUnavailable)
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		// Cloud Hypervisor caps concurrent connections; every handle gets
		// its own transport so pooled idle connections would only pile up.
		DisableKeepAlives: true,
	}

	return &VMM{
		httpClient: &http.Client{
			Transport: &metricsRoundTripper{base: transport},
			Timeout:   30 * time.Second,
		},
		socketPath: socketPath,
	}, nil
}

// Clone returns a new client for the same socket.
// Fails if the socket file is gone or is not a unix socket.
func (v *VMM) Clone() (API, error) {
	info, err := os.Stat(v.socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSocketUnavailable, err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return nil, fmt.Errorf("%w: %s is not a socket", ErrSocketUnavailable, v.socketPath)
	}
	return NewVMM(v.socketPath)
}

// VmAddFs issues PUT /vm.add-fs.
func (v *VMM) VmAddFs(ctx context.Context, cfg FsConfig) (*PciDeviceInfo, error) {
	var info PciDeviceInfo
	found, err := v.do(ctx, http.MethodPut, "/vm.add-fs", cfg, &info)
	if err != nil {
		return nil, fmt.Errorf("add fs: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &info, nil
}

// GetVmInfo issues GET /vm.info.
func (v *VMM) GetVmInfo(ctx context.Context) (*VmInfo, error) {
	var info VmInfo
	found, err := v.do(ctx, http.MethodGet, "/vm.info", nil, &info)
	if err != nil {
		return nil, fmt.Errorf("get vm info: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("get vm info: %w: empty response", ErrAPIFailure)
	}
	return &info, nil
}

// Ping issues GET /vmm.ping.
func (v *VMM) Ping(ctx context.Context) (*VmmPingResponse, error) {
	var ping VmmPingResponse
	found, err := v.do(ctx, http.MethodGet, "/vmm.ping", nil, &ping)
	if err != nil {
		return nil, fmt.Errorf("ping vmm: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("ping vmm: %w: empty response", ErrAPIFailure)
	}
	return &ping, nil
}

// do sends a request and decodes a JSON body into out.
// Returns false when the response carried no body (e.g. 204).
func (v *VMM) do(ctx context.Context, method, path string, in, out any) (bool, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return false, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiBaseURL+path, body)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return false, fmt.Errorf("%w: %w", ErrSocketUnavailable, err)
		}
		return false, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("%w: %s %s returned status %d: %s",
			ErrAPIFailure, method, path, resp.StatusCode, string(bytes.TrimSpace(respBody)))
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}
