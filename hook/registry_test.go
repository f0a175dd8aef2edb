package hook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/jobq/hook"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

// recordingHook implements every lifecycle event and records which fired.
type recordingHook struct {
	name   string
	events []string
	err    error
}

func (h *recordingHook) Name() string { return h.name }

func (h *recordingHook) OnJobEnqueued(_ context.Context, _ *job.Job) error {
	h.events = append(h.events, "enqueued")
	return h.err
}

func (h *recordingHook) OnJobStarted(_ context.Context, _ *job.Job) error {
	h.events = append(h.events, "started")
	return h.err
}

func (h *recordingHook) OnJobCompleted(_ context.Context, _ *job.Job, _ time.Duration) error {
	h.events = append(h.events, "completed")
	return h.err
}

func (h *recordingHook) OnJobFailed(_ context.Context, _ *job.Job, _ error) error {
	h.events = append(h.events, "failed")
	return h.err
}

func (h *recordingHook) OnJobRetrying(_ context.Context, _ *job.Job, _ int, _ time.Time) error {
	h.events = append(h.events, "retrying")
	return h.err
}

func (h *recordingHook) OnJobCancelled(_ context.Context, _ *job.Job) error {
	h.events = append(h.events, "cancelled")
	return h.err
}

func (h *recordingHook) OnShutdown(_ context.Context) error {
	h.events = append(h.events, "shutdown")
	return h.err
}

// startOnlyHook opts in to a single event.
type startOnlyHook struct {
	started int
}

func (h *startOnlyHook) Name() string { return "start-only" }

func (h *startOnlyHook) OnJobStarted(_ context.Context, _ *job.Job) error {
	h.started++
	return nil
}

func newRegistry() *hook.Registry {
	return hook.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testJob() *job.Job {
	return &job.Job{ID: id.NewJobID(), Type: "email", State: job.StatePending}
}

func TestRegistryEmitsAllEvents(t *testing.T) {
	r := newRegistry()
	h := &recordingHook{name: "recorder"}
	r.Register(h)

	ctx := context.Background()
	j := testJob()
	r.EmitJobEnqueued(ctx, j)
	r.EmitJobStarted(ctx, j)
	r.EmitJobCompleted(ctx, j, time.Millisecond)
	r.EmitJobFailed(ctx, j, errors.New("boom"))
	r.EmitJobRetrying(ctx, j, 1, time.Now())
	r.EmitJobCancelled(ctx, j)
	r.EmitShutdown(ctx)

	want := []string{"enqueued", "started", "completed", "failed", "retrying", "cancelled", "shutdown"}
	if len(h.events) != len(want) {
		t.Fatalf("events = %v, want %v", h.events, want)
	}
	for i := range want {
		if h.events[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, h.events[i], want[i])
		}
	}
}

func TestRegistryPartialHook(t *testing.T) {
	r := newRegistry()
	h := &startOnlyHook{}
	r.Register(h)

	ctx := context.Background()
	j := testJob()
	// Only OnJobStarted exists; other emits must not panic.
	r.EmitJobEnqueued(ctx, j)
	r.EmitJobStarted(ctx, j)
	r.EmitJobCompleted(ctx, j, 0)
	r.EmitShutdown(ctx)

	if h.started != 1 {
		t.Errorf("started = %d, want 1", h.started)
	}
}

func TestRegistryHookErrorsDoNotPropagate(t *testing.T) {
	r := newRegistry()
	failing := &recordingHook{name: "failing", err: errors.New("hook broke")}
	after := &recordingHook{name: "after"}
	r.Register(failing)
	r.Register(after)

	// An erroring hook must not stop later hooks from being notified.
	r.EmitJobStarted(context.Background(), testJob())

	if len(after.events) != 1 || after.events[0] != "started" {
		t.Errorf("second hook events = %v, want [started]", after.events)
	}
}

func TestRegistryNames(t *testing.T) {
	r := newRegistry()
	r.Register(&recordingHook{name: "first"})
	r.Register(&startOnlyHook{})

	names := r.Names()
	if len(names) != 2 || names[0] != "first" || names[1] != "start-only" {
		t.Errorf("Names() = %v, want [first start-only]", names)
	}
}
