//go:build wireinject

package main

import (
	"context"
	"log/slog"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/wire"
	"github.com/onkernel/devattach/cmd/api/api"
	"github.com/onkernel/devattach/cmd/api/config"
	"github.com/onkernel/devattach/lib/instances"
	"github.com/onkernel/devattach/lib/paths"
	"github.com/onkernel/devattach/lib/providers"
)

// application struct to hold initialized components
type application struct {
	Ctx             context.Context
	Logger          *slog.Logger
	Config          *config.Config
	Paths           *paths.Paths
	Spec            *openapi3.T
	InstanceManager instances.Manager
	ApiService      *api.ApiService
}

// initializeApp is the injector function
func initializeApp() (*application, func(), error) {
	panic(wire.Build(
		providers.ProvideLogger,
		providers.ProvideContext,
		providers.ProvideConfig,
		providers.ProvidePaths,
		providers.ProvideOpenAPISpec,
		providers.ProvideInstanceManager,
		api.New,
		wire.Struct(new(application), "*"),
	))
}
