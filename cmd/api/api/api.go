package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/onkernel/devattach/cmd/api/config"
	"github.com/onkernel/devattach/lib/instances"
	mw "github.com/onkernel/devattach/lib/middleware"
)

// ApiService serves the device attachment HTTP API
type ApiService struct {
	Config          *config.Config
	InstanceManager instances.Manager
}

// New creates a new ApiService
func New(config *config.Config, instanceManager instances.Manager) *ApiService {
	return &ApiService{
		Config:          config,
		InstanceManager: instanceManager,
	}
}

// Routes mounts the instance routes. Routes under /instances/{id} resolve
// the instance by ID, name, or ID prefix before the handler runs.
func (s *ApiService) Routes(r chi.Router) {
	r.Get("/instances", s.ListInstances)
	r.Post("/instances", s.CreateInstance)

	r.Route("/instances/{id}", func(r chi.Router) {
		r.Use(mw.ResolveInstance(s.NewResolver(), ResolverErrorResponder))

		r.Get("/", s.GetInstance)
		r.Delete("/", s.DeleteInstance)

		r.Get("/devices", s.ListPendingDevices)
		r.Post("/devices", s.AttachDevice)
		r.Delete("/devices", s.DetachDevice)

		r.Post("/running", s.MarkRunning)
		r.Post("/boot-config", s.TakeBootConfig)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, mw.ErrorBody{Code: code, Message: message})
}
