package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOptions configures a telemetry span.
type SpanOptions struct {
	Name       string
	Attributes []attribute.KeyValue
}

// RecordSpan starts a span named opts.Name, runs fn, records any returned
// error on the span, and always ends the span before returning.
func RecordSpan[T any](
	ctx context.Context,
	tracer trace.Tracer,
	opts SpanOptions,
	fn func(context.Context, trace.Span) (T, error),
) (T, error) {
	ctx, span := tracer.Start(ctx, opts.Name, trace.WithAttributes(opts.Attributes...))
	defer span.End()

	result, err := fn(ctx, span)
	if err != nil {
		RecordErrorOnSpan(span, err)
		var zero T
		return zero, err
	}
	return result, nil
}

// RecordErrorOnSpan records err on span and marks the span status as an
// error, a no-op when err is nil.
func RecordErrorOnSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// WarnOnSpan records a non-fatal warning as a span event. It is the sink
// used by components (e.g. pkg/requestlog) whose own failures must never
// surface to the caller, only be observable.
func WarnOnSpan(span trace.Span, message string, attrs ...attribute.KeyValue) {
	span.AddEvent(message, trace.WithAttributes(attrs...))
}
