package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/jobq/job"
)

// entry pairs a hook implementation with the name captured at
// registration time, so emit paths never type-assert back to Hook.
type entry[T any] struct {
	name string
	hook T
}

// Registry holds registered hooks and dispatches lifecycle events to
// them. Hooks are type-cached at registration time, so each emit call
// iterates only over hooks that implement the relevant event interface.
// Hook errors are logged and never propagate into the scheduler.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	enqueued  []entry[JobEnqueued]
	started   []entry[JobStarted]
	completed []entry[JobCompleted]
	failed    []entry[JobFailed]
	retrying  []entry[JobRetrying]
	cancelled []entry[JobCancelled]
	shutdown  []entry[Shutdown]
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into every applicable event
// cache. Hooks are notified in registration order. Register is not safe
// to call concurrently with emits; register during setup.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if v, ok := h.(JobEnqueued); ok {
		r.enqueued = append(r.enqueued, entry[JobEnqueued]{name, v})
	}
	if v, ok := h.(JobStarted); ok {
		r.started = append(r.started, entry[JobStarted]{name, v})
	}
	if v, ok := h.(JobCompleted); ok {
		r.completed = append(r.completed, entry[JobCompleted]{name, v})
	}
	if v, ok := h.(JobFailed); ok {
		r.failed = append(r.failed, entry[JobFailed]{name, v})
	}
	if v, ok := h.(JobRetrying); ok {
		r.retrying = append(r.retrying, entry[JobRetrying]{name, v})
	}
	if v, ok := h.(JobCancelled); ok {
		r.cancelled = append(r.cancelled, entry[JobCancelled]{name, v})
	}
	if v, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, entry[Shutdown]{name, v})
	}
}

// Names returns the names of all registered hooks in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.hooks))
	for i, h := range r.hooks {
		names[i] = h.Name()
	}
	return names
}

func (r *Registry) logHookErr(event, name string, err error) {
	r.logger.Error("hook error",
		slog.String("event", event),
		slog.String("hook", name),
		slog.String("error", err.Error()),
	)
}

// EmitJobEnqueued notifies JobEnqueued hooks.
func (r *Registry) EmitJobEnqueued(ctx context.Context, j *job.Job) {
	for _, e := range r.enqueued {
		if err := e.hook.OnJobEnqueued(ctx, j); err != nil {
			r.logHookErr("job_enqueued", e.name, err)
		}
	}
}

// EmitJobStarted notifies JobStarted hooks.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	for _, e := range r.started {
		if err := e.hook.OnJobStarted(ctx, j); err != nil {
			r.logHookErr("job_started", e.name, err)
		}
	}
}

// EmitJobCompleted notifies JobCompleted hooks.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.completed {
		if err := e.hook.OnJobCompleted(ctx, j, elapsed); err != nil {
			r.logHookErr("job_completed", e.name, err)
		}
	}
}

// EmitJobFailed notifies JobFailed hooks.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	for _, e := range r.failed {
		if err := e.hook.OnJobFailed(ctx, j, jobErr); err != nil {
			r.logHookErr("job_failed", e.name, err)
		}
	}
}

// EmitJobRetrying notifies JobRetrying hooks.
func (r *Registry) EmitJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) {
	for _, e := range r.retrying {
		if err := e.hook.OnJobRetrying(ctx, j, attempt, nextRunAt); err != nil {
			r.logHookErr("job_retrying", e.name, err)
		}
	}
}

// EmitJobCancelled notifies JobCancelled hooks.
func (r *Registry) EmitJobCancelled(ctx context.Context, j *job.Job) {
	for _, e := range r.cancelled {
		if err := e.hook.OnJobCancelled(ctx, j); err != nil {
			r.logHookErr("job_cancelled", e.name, err)
		}
	}
}

// EmitShutdown notifies Shutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookErr("shutdown", e.name, err)
		}
	}
}
