package data

import (
	"context"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation name for the data package.
const tracerName = "github.com/DevRickLin/feishu-meetbot/internal/data"

func startSpan(ctx context.Context, system, op, entity string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		attribute.String("db.system", system),
		attribute.String("db.operation", op),
		attribute.String("db.entity", entity),
	}, attrs...)
	return otel.Tracer(tracerName).Start(ctx, system+"."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// endSpan records the outcome of a store call
func endSpan(span trace.Span, err error) {
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case domain.IsNotFound(err):
		span.RecordError(err)
		span.SetStatus(codes.Error, "not found")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
