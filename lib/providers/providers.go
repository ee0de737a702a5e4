package providers

import (
	"context"
	"log/slog"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/onkernel/devattach/cmd/api/config"
	"github.com/onkernel/devattach/lib/instances"
	"github.com/onkernel/devattach/lib/logger"
	"github.com/onkernel/devattach/lib/oapi"
	"github.com/onkernel/devattach/lib/otel"
	"github.com/onkernel/devattach/lib/paths"
	gootel "go.opentelemetry.io/otel"
)

// ProvideLogger provides a structured logger. Records carrying an
// instance_id are also copied into that instance's log file.
func ProvideLogger(p *paths.Paths) *slog.Logger {
	base := logger.NewSubsystemLogger(logger.SubsystemAPI, logger.NewConfig(), otel.GetGlobalLogHandler())
	return slog.New(logger.NewInstanceLogHandler(base.Handler(), p.InstanceLog))
}

// ProvideContext provides a context with logger attached
func ProvideContext(log *slog.Logger) context.Context {
	return logger.AddToContext(context.Background(), log)
}

// ProvideConfig provides the application configuration
func ProvideConfig() *config.Config {
	return config.Load()
}

// ProvidePaths provides the data directory layout
func ProvidePaths(cfg *config.Config) *paths.Paths {
	return paths.New(cfg.DataDir)
}

// ProvideInstanceManager provides the instance manager
func ProvideInstanceManager(p *paths.Paths, cfg *config.Config) (instances.Manager, error) {
	meter := gootel.GetMeterProvider().Meter("devattach")
	tracer := gootel.GetTracerProvider().Tracer(cfg.OtelServiceName)
	return instances.NewManager(p, instances.DefaultClientFactory, meter, tracer)
}

// ProvideOpenAPISpec provides the OpenAPI document used for request validation
func ProvideOpenAPISpec() (*openapi3.T, error) {
	return oapi.RequestSpec()
}
