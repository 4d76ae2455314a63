package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var (
	operationKey = attribute.Key("xrayload.operation")
	userKey      = attribute.Key("xrayload.user")
	statusKey    = attribute.Key("xrayload.status")
)

// StartOperationSpan opens the client span covering one load operation of
// virtual user user. The span is named "xrayload <operation>".
func StartOperationSpan(ctx context.Context, tracer trace.Tracer, operation string, user int) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{userKey.Int(user)}
	name := "xrayload request"
	if operation != "" {
		name = "xrayload " + operation
		attrs = append(attrs, operationKey.String(operation))
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// StatusAttribute carries the sample status ("success" or "failed").
func StatusAttribute(status string) attribute.KeyValue {
	return statusKey.String(status)
}

// EndSpan closes span. A non-nil err marks it failed.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	defer span.End()
	span.SetAttributes(attrs...)
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// InjectHTTPHeaders writes the W3C traceparent of ctx into headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
