// Package observability provides a hook that records job lifecycle
// metrics through OpenTelemetry.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobq/job"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/xraph/jobq/observability"

// MetricsHook counts job lifecycle events per job type. Register it
// with the scheduler to expose enqueue/complete/fail/retry/cancel
// counters and a completion latency histogram.
type MetricsHook struct {
	enqueued  metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	retried   metric.Int64Counter
	cancelled metric.Int64Counter
	latency   metric.Float64Histogram
}

// NewMetricsHook creates a MetricsHook using the global MeterProvider.
func NewMetricsHook() *MetricsHook {
	return NewMetricsHookWithMeter(otel.Meter(meterName))
}

// NewMetricsHookWithMeter creates a MetricsHook using the provided
// meter, for tests or applications running multiple providers.
func NewMetricsHookWithMeter(meter metric.Meter) *MetricsHook {
	// The OTel API guarantees noop instruments on error.
	enqueued, _ := meter.Int64Counter("jobq.jobs.enqueued",
		metric.WithDescription("Jobs accepted into the scheduler"),
		metric.WithUnit("{job}"),
	)
	completed, _ := meter.Int64Counter("jobq.jobs.completed",
		metric.WithDescription("Jobs that finished successfully"),
		metric.WithUnit("{job}"),
	)
	failed, _ := meter.Int64Counter("jobq.jobs.failed",
		metric.WithDescription("Jobs that exhausted their retries"),
		metric.WithUnit("{job}"),
	)
	retried, _ := meter.Int64Counter("jobq.jobs.retried",
		metric.WithDescription("Retry attempts scheduled"),
		metric.WithUnit("{retry}"),
	)
	cancelled, _ := meter.Int64Counter("jobq.jobs.cancelled",
		metric.WithDescription("Jobs cancelled before dispatch"),
		metric.WithUnit("{job}"),
	)
	latency, _ := meter.Float64Histogram("jobq.jobs.completion_latency",
		metric.WithDescription("Time from enqueue to successful completion in seconds"),
		metric.WithUnit("s"),
	)

	return &MetricsHook{
		enqueued:  enqueued,
		completed: completed,
		failed:    failed,
		retried:   retried,
		cancelled: cancelled,
		latency:   latency,
	}
}

// Name implements hook.Hook.
func (h *MetricsHook) Name() string { return "observability.metrics" }

func typeAttrs(j *job.Job) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("job_type", j.Type),
		attribute.String("priority", j.Priority.String()),
	)
}

// OnJobEnqueued implements hook.JobEnqueued.
func (h *MetricsHook) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	h.enqueued.Add(ctx, 1, typeAttrs(j))
	return nil
}

// OnJobCompleted implements hook.JobCompleted.
func (h *MetricsHook) OnJobCompleted(ctx context.Context, j *job.Job, _ time.Duration) error {
	h.completed.Add(ctx, 1, typeAttrs(j))
	if j.CompletedAt != nil {
		h.latency.Record(ctx, j.CompletedAt.Sub(j.CreatedAt).Seconds(), typeAttrs(j))
	}
	return nil
}

// OnJobFailed implements hook.JobFailed.
func (h *MetricsHook) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	h.failed.Add(ctx, 1, typeAttrs(j))
	return nil
}

// OnJobRetrying implements hook.JobRetrying.
func (h *MetricsHook) OnJobRetrying(ctx context.Context, j *job.Job, _ int, _ time.Time) error {
	h.retried.Add(ctx, 1, typeAttrs(j))
	return nil
}

// OnJobCancelled implements hook.JobCancelled.
func (h *MetricsHook) OnJobCancelled(ctx context.Context, j *job.Job) error {
	h.cancelled.Add(ctx, 1, typeAttrs(j))
	return nil
}
