// Package tracing wraps the global OpenTelemetry tracer so the bridge and
// its facades emit a span per request. No exporter is wired here: without
// one, spans are dropped by the SDK's default no-op provider, but the call
// sites stay ready for whatever provider an operator registers around
// cmd/bridge or a facade's main.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xregistry/bridge"

// StartRequest opens a span named for the group type and HTTP method,
// tagged with the trace/correlation identifiers already carried on every
// xRegistry response (spec §4.F), so a wired exporter correlates spans with
// logged request lines by the same identifiers.
func StartRequest(ctx context.Context, groupType, method, path, traceID, correlationID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, groupType+" "+method)
	span.SetAttributes(
		attribute.String("xregistry.group_type", groupType),
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("xregistry.trace_id", traceID),
		attribute.String("xregistry.correlation_id", correlationID),
	)
	return ctx, span
}

// EndRequest closes span, recording the response status and any handler error.
func EndRequest(span trace.Span, status int, err error) {
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
