package api

import (
	"io"
	"net/http"

	"github.com/onkernel/devattach/lib/devices"
	"github.com/onkernel/devattach/lib/logger"
	mw "github.com/onkernel/devattach/lib/middleware"
)

// AttachResponse reports whether a device was queued for boot or attached live.
type AttachResponse struct {
	Queued bool `json:"queued"`
}

// AttachDevice attaches a device to a running VM or queues it until boot.
// Returns 202 when queued and 200 when attached.
func (s *ApiService) AttachDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dev, ok := readDevice(w, r)
	if !ok {
		return
	}

	queued, err := s.InstanceManager.AttachDevice(ctx, mw.GetResolvedID(ctx), dev)
	if err != nil {
		writeManagerError(ctx, w, err, "attach device")
		return
	}

	status := http.StatusOK
	if queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, AttachResponse{Queued: queued})
}

// DetachDevice accepts a removal request. Removal is not supported by the
// VMM integration yet, so nothing changes.
func (s *ApiService) DetachDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dev, ok := readDevice(w, r)
	if !ok {
		return
	}

	if err := s.InstanceManager.DetachDevice(ctx, mw.GetResolvedID(ctx), dev); err != nil {
		writeManagerError(ctx, w, err, "detach device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPendingDevices lists the requests queued for boot, most recent first
func (s *ApiService) ListPendingDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pending, err := s.InstanceManager.PendingDevices(ctx, mw.GetResolvedID(ctx))
	if err != nil {
		writeManagerError(ctx, w, err, "list pending devices")
		return
	}

	out := make([]devices.Request, 0, len(pending))
	for _, dev := range pending {
		req, err := devices.NewRequest(dev)
		if err != nil {
			writeManagerError(ctx, w, err, "list pending devices")
			return
		}
		out = append(out, req)
	}
	writeJSON(w, http.StatusOK, out)
}

func readDevice(w http.ResponseWriter, r *http.Request) (devices.Device, bool) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.FromContext(ctx).DebugContext(ctx, "failed to read request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
		return nil, false
	}

	dev, err := devices.ParseRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return nil, false
	}
	return dev, true
}
