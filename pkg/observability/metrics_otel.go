package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry instruments for the same events as Metrics.
// A nil *OTelMetrics is valid and records nothing.
type OTelMetrics struct {
	httpRequests        metric.Int64Counter
	httpDuration        metric.Float64Histogram
	invitationsStored   metric.Int64Counter
	membershipsVerified metric.Int64Counter
	sessionsPurged      metric.Int64Counter
}

// NewOTelMetrics creates instruments from the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsFromMeter(otel.Meter("github.com/platinummonkey/identity"))
}

// NewOTelMetricsFromMeter creates instruments from meter
func NewOTelMetricsFromMeter(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	if m.httpRequests, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("failed to create http.server.requests counter: %w", err)
	}
	if m.httpDuration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create http.server.duration histogram: %w", err)
	}
	if m.invitationsStored, err = meter.Int64Counter("identity.invitations.stored",
		metric.WithDescription("Invitation writes by outcome"),
		metric.WithUnit("{invitation}")); err != nil {
		return nil, fmt.Errorf("failed to create identity.invitations.stored counter: %w", err)
	}
	if m.membershipsVerified, err = meter.Int64Counter("identity.memberships.verified",
		metric.WithDescription("Invitations accepted"),
		metric.WithUnit("{membership}")); err != nil {
		return nil, fmt.Errorf("failed to create identity.memberships.verified counter: %w", err)
	}
	if m.sessionsPurged, err = meter.Int64Counter("identity.sessions.purged",
		metric.WithDescription("Expired sessions removed"),
		metric.WithUnit("{session}")); err != nil {
		return nil, fmt.Errorf("failed to create identity.sessions.purged counter: %w", err)
	}

	return m, nil
}

func (m *OTelMetrics) httpRequest(ctx context.Context, method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, seconds, attrs)
}

func (m *OTelMetrics) invitationStored(outcome string) {
	if m == nil {
		return
	}
	m.invitationsStored.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *OTelMetrics) membershipVerified(kind string) {
	if m == nil {
		return
	}
	m.membershipsVerified.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *OTelMetrics) recordSessionsPurged(n int64) {
	if m == nil {
		return
	}
	m.sessionsPurged.Add(context.Background(), n)
}
