package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobq/job"
)

// meterName is the instrumentation scope name for jobq metrics.
const meterName = "github.com/xraph/jobq"

// Metrics returns middleware that records per-job execution metrics
// using the global OTel MeterProvider. With no provider configured the
// OTel API hands back noop instruments and this middleware becomes a
// pass-through.
//
// Instruments:
//   - jobq.job.duration (Float64Histogram): execution time in seconds,
//     with attributes: job_type, priority, status ("ok" or "error")
//   - jobq.job.executions (Int64Counter): total executions,
//     with attributes: job_type, priority, status ("ok" or "error")
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instruments are created once here; OTel guarantees noop fallback
	// instruments on error, so the errors are safe to drop.
	duration, _ := meter.Float64Histogram(
		"jobq.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"jobq.job.executions",
		metric.WithDescription("Total number of job executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, j *job.Job, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("job_type", j.Type),
			attribute.String("priority", j.Priority.String()),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}
