package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/onkernel/devattach/lib/instances"
	mw "github.com/onkernel/devattach/lib/middleware"
)

// InstanceResolver adapts instances.Manager to the resolver middleware.
type InstanceResolver struct {
	Manager instances.Manager
}

func (r InstanceResolver) Resolve(ctx context.Context, idOrName string) (string, any, error) {
	id, err := r.Manager.Resolve(ctx, idOrName)
	if err != nil {
		return "", nil, err
	}
	inst, err := r.Manager.GetInstance(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return id, inst, nil
}

// NewResolver creates the instance resolver for the ApiService manager.
func (s *ApiService) NewResolver() mw.InstanceResolver {
	return InstanceResolver{Manager: s.InstanceManager}
}

// ResolverErrorResponder handles resolver errors by writing appropriate HTTP responses.
func ResolverErrorResponder(w http.ResponseWriter, err error, lookup string) {
	switch {
	case errors.Is(err, instances.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "instance not found")
	case errors.Is(err, instances.ErrAmbiguousName):
		writeError(w, http.StatusConflict, "ambiguous", "multiple instances match, use full ID")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to resolve instance")
	}
}
