package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GatewayMetrics holds metric instruments for authentication and session protocol decisions.
// Create once at startup and share; instruments are safe for concurrent use.
type GatewayMetrics struct {
	AuthnFailures     metric.Int64Counter     // Rejected credentials
	AuthzDecisions    metric.Int64Counter     // Permission checks by result
	SwitchOutcomes    metric.Int64Counter     // Organization switches by result
	ExchangeOutcomes  metric.Int64Counter     // Intermediate exchanges by result
	RevokeFailures    metric.Int64Counter     // Logout revocations that failed remotely
	StoreCallDuration metric.Float64Histogram // Session store latency
}

// NewGatewayMetrics creates the gateway instruments on the global meter provider.
func NewGatewayMetrics() (*GatewayMetrics, error) {
	meter := otel.Meter("squircle/gateway")

	authnFailures, err := meter.Int64Counter(
		"gateway.authn.failures",
		metric.WithDescription("Requests rejected as unauthenticated"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	authzDecisions, err := meter.Int64Counter(
		"gateway.authz.decisions",
		metric.WithDescription("Authorization checks by result"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	switchOutcomes, err := meter.Int64Counter(
		"gateway.switch.outcomes",
		metric.WithDescription("Organization switch requests by result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	exchangeOutcomes, err := meter.Int64Counter(
		"gateway.exchange.outcomes",
		metric.WithDescription("Intermediate session exchanges by result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	revokeFailures, err := meter.Int64Counter(
		"gateway.logout.revoke_failures",
		metric.WithDescription("Logout revocations that failed at the session store"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: 5ms .. 10s
	storeCallDuration, err := meter.Float64Histogram(
		"sessionstore.call.duration",
		metric.WithDescription("Session store call duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	)
	if err != nil {
		return nil, err
	}

	return &GatewayMetrics{
		AuthnFailures:     authnFailures,
		AuthzDecisions:    authzDecisions,
		SwitchOutcomes:    switchOutcomes,
		ExchangeOutcomes:  exchangeOutcomes,
		RevokeFailures:    revokeFailures,
		StoreCallDuration: storeCallDuration,
	}, nil
}

// NoopGatewayMetrics returns instruments that record nothing. Used by tests and
// by callers that do not configure telemetry.
func NoopGatewayMetrics() *GatewayMetrics {
	m, err := NewGatewayMetrics()
	if err != nil {
		// The global provider is a no-op until Init runs; instrument creation cannot fail there.
		panic(err)
	}
	return m
}

// AuthnFailed counts an unauthenticated rejection.
func (m *GatewayMetrics) AuthnFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.AuthnFailures.Add(ctx, 1)
}

// AuthzDecided counts an authorization decision.
func (m *GatewayMetrics) AuthzDecided(ctx context.Context, resource, action string, allowed bool) {
	if m == nil {
		return
	}
	m.AuthzDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrResourceID, resource),
		attribute.String(AttrAction, action),
		attribute.Bool(AttrAuthorized, allowed),
	))
}

// SwitchCompleted counts an organization switch by outcome ("switched", "create", "reauth").
func (m *GatewayMetrics) SwitchCompleted(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.SwitchOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, outcome)))
}

// ExchangeCompleted counts an intermediate exchange by outcome.
func (m *GatewayMetrics) ExchangeCompleted(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.ExchangeOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, outcome)))
}

// RevokeFailed counts a logout whose remote revocation failed.
func (m *GatewayMetrics) RevokeFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.RevokeFailures.Add(ctx, 1)
}

// RecordStoreCall records the latency of one session store operation.
func (m *GatewayMetrics) RecordStoreCall(ctx context.Context, operation string, durationMs float64, err error) {
	if m == nil {
		return
	}
	m.StoreCallDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("sessionstore.operation", operation),
		attribute.Bool("sessionstore.error", err != nil),
	))
}
