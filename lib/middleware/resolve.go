// Package middleware provides HTTP middleware for the devattach API.
package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/onkernel/devattach/lib/logger"
)

// InstanceResolver is implemented by managers that support lookup by ID,
// name, or ID prefix.
type InstanceResolver interface {
	// Resolve returns the resolved ID and the instance.
	// Should return ErrNotFound if not found, ErrAmbiguousName if a prefix
	// matches multiple instances.
	Resolve(ctx context.Context, idOrName string) (id string, instance any, err error)
}

type resolvedInstanceKey struct{}

// ResolvedInstance holds the resolved instance ID and value.
type ResolvedInstance struct {
	ID       string
	Instance any
}

// ErrorResponder handles resolver errors by writing HTTP responses.
type ErrorResponder func(w http.ResponseWriter, err error, lookup string)

// ResolveInstance creates middleware that resolves the {id} URL parameter
// before handlers run. The resolved instance is stored in context and the
// logger is enriched with instance_id, so the handler's logs also land in
// the instance log.
//
// Must be mounted on a route that defines {id}; requests without one pass
// through unchanged.
func ResolveInstance(resolver InstanceResolver, errResponder ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idOrName := chi.URLParam(r, "id")
			if idOrName == "" || resolver == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			id, inst, err := resolver.Resolve(ctx, idOrName)
			if err != nil {
				errResponder(w, err, idOrName)
				return
			}

			ctx = WithResolvedInstance(ctx, id, inst)
			ctx = logger.AddToContext(ctx, logger.FromContext(ctx).With(logger.InstanceKey, id))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetResolvedInstance retrieves the resolved instance from context.
// Returns nil if not found or wrong type.
func GetResolvedInstance[T any](ctx context.Context) *T {
	resolved, ok := ctx.Value(resolvedInstanceKey{}).(ResolvedInstance)
	if !ok {
		return nil
	}

	if typed, ok := resolved.Instance.(*T); ok {
		return typed
	}
	if typed, ok := resolved.Instance.(T); ok {
		return &typed
	}
	return nil
}

// GetResolvedID retrieves just the resolved instance ID.
func GetResolvedID(ctx context.Context) string {
	if resolved, ok := ctx.Value(resolvedInstanceKey{}).(ResolvedInstance); ok {
		return resolved.ID
	}
	return ""
}

// WithResolvedInstance returns a context with the given instance set as resolved.
func WithResolvedInstance(ctx context.Context, id string, inst any) context.Context {
	return context.WithValue(ctx, resolvedInstanceKey{}, ResolvedInstance{ID: id, Instance: inst})
}
