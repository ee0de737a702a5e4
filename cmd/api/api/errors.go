package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/onkernel/devattach/lib/devices"
	"github.com/onkernel/devattach/lib/hypervisor"
	"github.com/onkernel/devattach/lib/instances"
	"github.com/onkernel/devattach/lib/logger"
	"github.com/onkernel/devattach/lib/vmm"
)

// writeManagerError maps instance manager errors to HTTP responses.
// action names the failed operation in 500 responses.
func writeManagerError(ctx context.Context, w http.ResponseWriter, err error, action string) {
	log := logger.FromContext(ctx)

	switch {
	// Checked first: the cause of a replay failure may be any of the errors below.
	case errors.Is(err, instances.ErrReplayFailed):
		log.ErrorContext(ctx, "device replay failed", "error", err)
		writeError(w, http.StatusInternalServerError, "replay_failed", err.Error())

	case errors.Is(err, instances.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "instance not found")

	case errors.Is(err, instances.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already_exists", err.Error())

	case errors.Is(err, instances.ErrAmbiguousName):
		writeError(w, http.StatusConflict, "ambiguous", err.Error())

	case errors.Is(err, instances.ErrInvalidState),
		errors.Is(err, hypervisor.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())

	case errors.Is(err, instances.ErrInvalidRequest),
		errors.Is(err, devices.ErrInvalidRequest),
		errors.Is(err, devices.ErrUnsupportedKind),
		errors.Is(err, devices.ErrUnsupportedFsType),
		errors.Is(err, hypervisor.ErrQueueSizeOverflow):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, hypervisor.ErrMissingBootFile),
		errors.Is(err, hypervisor.ErrNoConfig):
		writeError(w, http.StatusUnprocessableEntity, "missing_boot_config", err.Error())

	case errors.Is(err, vmm.ErrAPIFailure),
		errors.Is(err, vmm.ErrSocketUnavailable):
		log.ErrorContext(ctx, "vmm request failed", "action", action, "error", err)
		writeError(w, http.StatusBadGateway, "vmm_error", err.Error())

	default:
		log.ErrorContext(ctx, "failed to "+action, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
	}
}
