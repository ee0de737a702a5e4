package api

import (
	"encoding/json"
	"net/http"

	"github.com/onkernel/devattach/lib/instances"
	"github.com/onkernel/devattach/lib/logger"
	mw "github.com/onkernel/devattach/lib/middleware"
)

// ListInstances lists all instances
func (s *ApiService) ListInstances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	insts, err := s.InstanceManager.ListInstances(ctx)
	if err != nil {
		writeManagerError(ctx, w, err, "list instances")
		return
	}
	writeJSON(w, http.StatusOK, insts)
}

// CreateInstance registers a new instance
func (s *ApiService) CreateInstance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req instances.CreateInstanceRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		log.DebugContext(ctx, "invalid create request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	inst, err := s.InstanceManager.CreateInstance(ctx, req)
	if err != nil {
		writeManagerError(ctx, w, err, "create instance")
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

// GetInstance gets instance details
func (s *ApiService) GetInstance(w http.ResponseWriter, r *http.Request) {
	inst := mw.GetResolvedInstance[instances.Instance](r.Context())
	if inst == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resource not resolved")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// DeleteInstance removes an instance and its data
func (s *ApiService) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.InstanceManager.DeleteInstance(ctx, mw.GetResolvedID(ctx)); err != nil {
		writeManagerError(ctx, w, err, "delete instance")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkRunning records that the VM booted and replays its queued devices
func (s *ApiService) MarkRunning(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	inst, err := s.InstanceManager.MarkRunning(ctx, mw.GetResolvedID(ctx))
	if err != nil {
		writeManagerError(ctx, w, err, "mark instance running")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// TakeBootConfig returns the device part of the boot config, consuming the
// pending queue
func (s *ApiService) TakeBootConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cfg, err := s.InstanceManager.TakeBootConfig(ctx, mw.GetResolvedID(ctx))
	if err != nil {
		writeManagerError(ctx, w, err, "build boot config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
