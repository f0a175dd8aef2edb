package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobq/job"
)

// tracerName is the instrumentation scope name for jobq tracing.
const tracerName = "github.com/xraph/jobq"

// Tracing returns middleware that wraps job execution in an
// OpenTelemetry span. With no TracerProvider configured globally the
// noop tracer is used and this middleware is a zero-overhead
// pass-through.
//
// Span attributes: jobq.job.id, jobq.job.type, jobq.priority,
// jobq.retry_count. On error the span status is set to codes.Error.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided
// tracer, for tests or applications running multiple providers.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "jobq.job.execute",
			trace.WithAttributes(
				attribute.String("jobq.job.id", j.ID.String()),
				attribute.String("jobq.job.type", j.Type),
				attribute.String("jobq.priority", j.Priority.String()),
				attribute.Int("jobq.retry_count", j.RetryCount),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
