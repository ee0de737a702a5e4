package instances

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metrics holds the metrics instruments for instance operations.
type Metrics struct {
	stateTransitions metric.Int64Counter
	tracer           trace.Tracer
}

// newInstanceMetrics creates and registers all instance metrics.
func newInstanceMetrics(meter metric.Meter, tracer trace.Tracer, m *manager) (*Metrics, error) {
	stateTransitions, err := meter.Int64Counter(
		"devattach_instances_state_transitions_total",
		metric.WithDescription("Total number of instance state transitions"),
	)
	if err != nil {
		return nil, err
	}

	// Register observable gauge for instance counts by state
	instancesTotal, err := meter.Int64ObservableGauge(
		"devattach_instances_total",
		metric.WithDescription("Total number of instances by state"),
	)
	if err != nil {
		return nil, err
	}

	pendingTotal, err := meter.Int64ObservableGauge(
		"devattach_pending_devices",
		metric.WithDescription("Device requests waiting for their VM to boot"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			stateCounts := make(map[string]int64)
			var pending int64
			for _, inst := range m.snapshot() {
				stateCounts[string(inst.State)]++
				pending += int64(inst.PendingDevices)
			}
			for state, count := range stateCounts {
				o.ObserveInt64(instancesTotal, count,
					metric.WithAttributes(attribute.String("state", state)))
			}
			o.ObserveInt64(pendingTotal, pending)
			return nil
		},
		instancesTotal,
		pendingTotal,
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		stateTransitions: stateTransitions,
		tracer:           tracer,
	}, nil
}

// recordStateTransition records a state transition.
func (m *manager) recordStateTransition(ctx context.Context, fromState, toState string) {
	if m.metrics == nil {
		return
	}
	m.metrics.stateTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", fromState),
			attribute.String("to", toState),
		))
}
