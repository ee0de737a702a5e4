package cloudhypervisor

import (
	"context"
	"time"

	"github.com/onkernel/devattach/lib/devices"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Metrics holds the metrics instruments for device attachment.
type Metrics struct {
	devicesQueued   metric.Int64Counter
	devicesAttached metric.Int64Counter
	replayDuration  metric.Float64Histogram
	tracer          trace.Tracer
}

// NewMetrics creates device attachment metrics instruments.
// If meter is nil, returns nil (metrics disabled).
func NewMetrics(meter metric.Meter, tracer trace.Tracer) (*Metrics, error) {
	if meter == nil {
		return nil, nil
	}

	devicesQueued, err := meter.Int64Counter(
		"devattach_devices_queued_total",
		metric.WithDescription("Total number of device requests queued before boot"),
	)
	if err != nil {
		return nil, err
	}

	devicesAttached, err := meter.Int64Counter(
		"devattach_devices_attached_total",
		metric.WithDescription("Total number of device hot-plug attempts"),
	)
	if err != nil {
		return nil, err
	}

	replayDuration, err := meter.Float64Histogram(
		"devattach_replay_duration_seconds",
		metric.WithDescription("Time to replay queued devices after boot"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		devicesQueued:   devicesQueued,
		devicesAttached: devicesAttached,
		replayDuration:  replayDuration,
		tracer:          tracer,
	}, nil
}

func (m *Metrics) recordQueued(ctx context.Context, kind devices.Kind) {
	if m == nil {
		return
	}
	m.devicesQueued.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (m *Metrics) recordAttach(ctx context.Context, kind devices.Kind, err error) {
	if m == nil {
		return
	}
	m.devicesAttached.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", string(kind)),
			attribute.String("status", statusOf(err)),
		))
}

func (m *Metrics) recordReplay(ctx context.Context, start time.Time, err error) {
	if m == nil {
		return
	}
	m.replayDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("status", statusOf(err))))
}

// startSpan starts a span when a tracer is configured.
// The returned span is never nil.
func (m *Metrics) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if m == nil || m.tracer == nil {
		return ctx, noop.Span{}
	}
	return m.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
