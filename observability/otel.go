package observability

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/dwidge/table-api"

// Tracer wraps an OpenTelemetry tracer with helpers for table operations
// and outbound HTTP requests. A nil *Tracer falls back to the global
// provider.
type Tracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewTracer uses provider, or the global tracer provider when nil
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	return &Tracer{
		tracer:     provider.Tracer(instrumentationName),
		propagator: otel.GetTextMapPropagator(),
	}
}

func (t *Tracer) get() *Tracer {
	if t == nil {
		return NewTracer(nil)
	}
	return t
}

// StartOperation opens an internal span named after the table operation
func (t *Tracer) StartOperation(ctx context.Context, table, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := t.get().tracer.Start(ctx, fmt.Sprintf("%s.%s", table, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(attribute.String("table.name", table), attribute.String("table.operation", operation))
	span.SetAttributes(attrs...)
	return ctx, span
}

// End records err on span, if any, and ends it
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// StartRequest opens a client span for req and injects the trace context
// into its headers.
func (t *Tracer) StartRequest(ctx context.Context, req *http.Request) (context.Context, trace.Span) {
	t = t.get()
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("HTTP %s", req.Method),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.String()),
		attribute.String("http.host", req.URL.Host),
	)

	t.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	return ctx, span
}

// EndRequest completes a client span with the response status or error
func EndRequest(span trace.Span, resp *http.Response, retries int, err error) {
	if retries > 0 {
		span.SetAttributes(attribute.Int("http.retry_count", retries))
	}
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case resp != nil:
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		if resp.StatusCode >= 400 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
	span.End()
}
