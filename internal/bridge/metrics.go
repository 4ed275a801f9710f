package bridge

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"switchboard/pkg/logging"
)

const instrumentationName = "switchboard/bridge"

// Metrics records invocation, failure and truncation counts plus invocation
// latency through OpenTelemetry.
type Metrics struct {
	invocations metric.Int64Counter
	failures    metric.Int64Counter
	truncations metric.Int64Counter
	sessions    metric.Int64UpDownCounter
	duration    metric.Float64Histogram
}

// NewMetrics creates the bridge instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	invocations, err := meter.Int64Counter("switchboard.invocations",
		metric.WithDescription("Adapter invocations"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("switchboard.invocation_failures",
		metric.WithDescription("Adapter invocations that returned an error result"))
	if err != nil {
		return nil, err
	}
	truncations, err := meter.Int64Counter("switchboard.truncations",
		metric.WithDescription("Truncations applied to invocation responses"))
	if err != nil {
		return nil, err
	}
	sessions, err := meter.Int64UpDownCounter("switchboard.active_sessions",
		metric.WithDescription("Sessions with registered adapters"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("switchboard.invocation_duration",
		metric.WithDescription("Adapter invocation latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		invocations: invocations,
		failures:    failures,
		truncations: truncations,
		sessions:    sessions,
		duration:    duration,
	}, nil
}

// DefaultMetrics uses the global MeterProvider; configure it via
// otel.SetMeterProvider before calling. It falls back to a no-op meter when
// the instruments cannot be created.
func DefaultMetrics() *Metrics {
	m, err := NewMetrics(otel.Meter(instrumentationName))
	if err != nil {
		logging.Warn("Bridge", "Falling back to no-op metrics: %v", err)
		m, _ = NewMetrics(noop.NewMeterProvider().Meter(instrumentationName))
	}
	return m
}

func (m *Metrics) recordInvocation(ctx context.Context, implementation, operation string, elapsed time.Duration, failed bool) {
	attrs := metric.WithAttributes(
		attribute.String("implementation", implementation),
		attribute.String("operation", operation),
	)
	m.invocations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	if failed {
		m.failures.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) recordTruncations(ctx context.Context, tool, kind string, n int) {
	if n <= 0 {
		return
	}
	m.truncations.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("kind", kind),
	))
}

func (m *Metrics) sessionStarted(ctx context.Context) { m.sessions.Add(ctx, 1) }
func (m *Metrics) sessionEnded(ctx context.Context)   { m.sessions.Add(ctx, -1) }
