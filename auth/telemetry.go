package auth

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/jrsteele09/go-school-session/auth"

// telemetry records logins, re-logins and bridged requests. The global providers are no-ops
// until the host installs real ones.
type telemetry struct {
	tracer   trace.Tracer
	logins   metric.Int64Counter
	relogins metric.Int64Counter
	requests metric.Int64Counter
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*telemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	logins, err := meter.Int64Counter("school_session_logins_total",
		metric.WithDescription("Login steps by provider and outcome."))
	if err != nil {
		return nil, err
	}
	relogins, err := meter.Int64Counter("school_session_relogins_total",
		metric.WithDescription("Silent re-logins run by the request bridge."))
	if err != nil {
		return nil, err
	}
	requests, err := meter.Int64Counter("school_session_requests_total",
		metric.WithDescription("Canonical requests by feature and status."))
	if err != nil {
		return nil, err
	}
	return &telemetry{
		tracer:   tp.Tracer(instrumentationName),
		logins:   logins,
		relogins: relogins,
		requests: requests,
	}, nil
}

func (t *telemetry) loginStep(ctx context.Context, kind, outcome string) {
	t.logins.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", kind),
		attribute.String("outcome", outcome),
	))
}

func (t *telemetry) relogin(ctx context.Context, kind, outcome string) {
	t.relogins.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", kind),
		attribute.String("outcome", outcome),
	))
}

func (t *telemetry) request(ctx context.Context, feature, status string) {
	t.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("feature", feature),
		attribute.String("status", status),
	))
}
