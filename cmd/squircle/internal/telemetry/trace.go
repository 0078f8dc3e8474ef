package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer names
const (
	TracerSessionStore = "squircle/sessionstore"
	TracerGateway      = "squircle/gateway"
)

// StartSpan creates a new span for an operation.
//
//	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerSessionStore, "sessionstore.AuthenticateSession",
//	    attribute.String(telemetry.AttrOrganizationID, orgID),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error on the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named event to the span with optional attributes.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Common attribute keys. Credentials are never recorded.
const (
	AttrMemberID       = "member.id"
	AttrOrganizationID = "organization.id"
	AttrResourceID     = "authz.resource"
	AttrAction         = "authz.action"
	AttrAuthorized     = "authz.authorized"
	AttrStatusCode     = "sessionstore.status_code"
	AttrRequestID      = "sessionstore.request_id"
	AttrOutcome        = "gateway.outcome"
)
