package vmm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Request outcomes reported on devattach_vmm_requests_total.
const (
	outcomeSuccess     = "success"
	outcomeAPIError    = "api_error"
	outcomeUnreachable = "unreachable"
)

// Metrics counts and times requests sent to Cloud Hypervisor API sockets.
type Metrics struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// VMMMetrics is shared by every client; set it with SetMetrics at startup.
var VMMMetrics *Metrics

// SetMetrics sets the global metrics instance.
func SetMetrics(m *Metrics) {
	VMMMetrics = m
}

// NewMetrics creates the instruments. A nil meter disables metrics.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		return nil, nil
	}

	requests, err := meter.Int64Counter(
		"devattach_vmm_requests_total",
		metric.WithDescription("Requests sent to Cloud Hypervisor API sockets, by endpoint and outcome"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"devattach_vmm_request_duration_seconds",
		metric.WithDescription("Round trip time of Cloud Hypervisor API requests, including the socket dial"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requests:        requests,
		requestDuration: requestDuration,
	}, nil
}

// record is safe to call on a nil *Metrics.
func (m *Metrics) record(ctx context.Context, endpoint string, start time.Time, statusCode int, err error) {
	if m == nil {
		return
	}
	endpointAttr := attribute.String("endpoint", endpoint)
	m.requests.Add(ctx, 1, metric.WithAttributes(endpointAttr, attribute.String("outcome", outcomeOf(statusCode, err))))
	m.requestDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(endpointAttr))
}

func outcomeOf(statusCode int, err error) string {
	var opErr *net.OpError
	switch {
	case err != nil && errors.As(err, &opErr) && opErr.Op == "dial":
		return outcomeUnreachable
	case err != nil, statusCode >= 300:
		return outcomeAPIError
	default:
		return outcomeSuccess
	}
}

// endpointOf turns "/api/v1/vm.add-fs" into "vm.add-fs".
func endpointOf(path string) string {
	return strings.TrimPrefix(path, "/api/v1/")
}
