package jobq_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/backoff"
	"github.com/xraph/jobq/hook"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

func newScheduler(t *testing.T, opts ...jobq.Option) *jobq.Scheduler {
	t.Helper()

	cfg := jobq.DefaultConfig()
	cfg.Workers = 2
	cfg.DequeueTimeout = 20 * time.Millisecond

	base := []jobq.Option{
		jobq.WithConfig(cfg),
		jobq.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		jobq.WithBackoff(backoff.NewFixed(10 * time.Millisecond)),
	}
	s, err := jobq.New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func waitState(t *testing.T, s *jobq.Scheduler, jobID id.JobID, want job.State) *job.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := s.Job(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if j.State == want {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	j, _ := s.Job(context.Background(), jobID)
	t.Fatalf("job never reached %s, stuck at %s", want, j.State)
	return nil
}

func TestNewRejectsZeroWorkers(t *testing.T) {
	if _, err := jobq.New(jobq.WithWorkers(0)); err == nil {
		t.Error("expected error for zero workers")
	}
}

func TestEnqueueStoresPendingJob(t *testing.T) {
	s := newScheduler(t)

	j, err := jobq.Enqueue(context.Background(), s, "email", map[string]string{"to": "ops@example.com"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if j.State != job.StatePending {
		t.Errorf("state = %s, want pending", j.State)
	}
	if j.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", j.RetryCount)
	}
	if j.MaxRetries != 3 {
		t.Errorf("max retries = %d, want config default 3", j.MaxRetries)
	}
	if j.Priority != job.PriorityNormal {
		t.Errorf("priority = %v, want normal default", j.Priority)
	}
	if j.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	got, err := s.Job(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Type != "email" {
		t.Errorf("stored type = %q, want email", got.Type)
	}
}

func TestEnqueueOptionsOverrideDefaults(t *testing.T) {
	s := newScheduler(t)

	j, err := s.EnqueueRaw(context.Background(), "export", nil,
		job.WithPriority(job.PriorityCritical), job.WithMaxRetries(7))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if j.Priority != job.PriorityCritical || j.MaxRetries != 7 {
		t.Errorf("got priority=%v retries=%d, want critical/7", j.Priority, j.MaxRetries)
	}
}

type reportPayload struct {
	Month string `json:"month"`
}

func TestSchedulerProcessesTypedJob(t *testing.T) {
	s := newScheduler(t)

	def := job.NewDefinition("report", func(ctx context.Context, p reportPayload, h *job.Handle) (any, error) {
		return map[string]string{"report": "sales-" + p.Month}, nil
	})
	jobq.Register(s, def)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	j, err := jobq.Enqueue(context.Background(), s, "report", reportPayload{Month: "june"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := waitState(t, s, j.ID, job.StateCompleted)
	if string(done.Result) != `{"report":"sales-june"}` {
		t.Errorf("result = %s", done.Result)
	}
	if done.Progress != 100 {
		t.Errorf("progress = %d, want 100", done.Progress)
	}
}

func TestCancelPendingJob(t *testing.T) {
	s := newScheduler(t)

	j, err := s.EnqueueRaw(context.Background(), "email", nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := s.Cancel(context.Background(), j.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ := s.Job(context.Background(), j.ID)
	if got.State != job.StateCancelled {
		t.Errorf("state = %s, want cancelled", got.State)
	}

	// Cancelling twice is an invalid transition, not a no-op.
	if err := s.Cancel(context.Background(), j.ID); !errors.Is(err, job.ErrInvalidTransition) {
		t.Errorf("second cancel error = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelUnknownJob(t *testing.T) {
	s := newScheduler(t)
	if err := s.Cancel(context.Background(), id.NewJobID()); !errors.Is(err, job.ErrNotFound) {
		t.Errorf("cancel unknown error = %v, want ErrNotFound", err)
	}
}

func TestCancelCompletedJobRejected(t *testing.T) {
	s := newScheduler(t)
	s.RegisterFunc("email", func(ctx context.Context, payload []byte, h *job.Handle) ([]byte, error) {
		return nil, nil
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	j, _ := s.EnqueueRaw(context.Background(), "email", nil)
	waitState(t, s, j.ID, job.StateCompleted)

	if err := s.Cancel(context.Background(), j.ID); !errors.Is(err, job.ErrInvalidTransition) {
		t.Errorf("cancel completed error = %v, want ErrInvalidTransition", err)
	}
}

func TestRetryFailedJob(t *testing.T) {
	s := newScheduler(t)

	var healthy atomic.Bool
	s.RegisterFunc("flaky", func(ctx context.Context, payload []byte, h *job.Handle) ([]byte, error) {
		if !healthy.Load() {
			return nil, errors.New("downstream down")
		}
		return []byte(`"ok"`), nil
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	j, _ := s.EnqueueRaw(context.Background(), "flaky", nil, job.WithMaxRetries(1))
	failed := waitState(t, s, j.ID, job.StateFailed)
	if failed.RetryCount != 1 {
		t.Errorf("retry count after failure = %d, want 1", failed.RetryCount)
	}

	healthy.Store(true)
	if err := s.Retry(context.Background(), j.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}

	done := waitState(t, s, j.ID, job.StateCompleted)
	if done.RetryCount != 0 {
		t.Errorf("retry count after resubmit = %d, want reset to 0", done.RetryCount)
	}
	if done.LastError != "" {
		t.Errorf("last error = %q, want cleared", done.LastError)
	}
}

func TestRetryRequiresFailedState(t *testing.T) {
	s := newScheduler(t)

	j, _ := s.EnqueueRaw(context.Background(), "email", nil)
	if err := s.Retry(context.Background(), j.ID); !errors.Is(err, job.ErrInvalidTransition) {
		t.Errorf("retry pending error = %v, want ErrInvalidTransition", err)
	}
	if err := s.Retry(context.Background(), id.NewJobID()); !errors.Is(err, job.ErrNotFound) {
		t.Errorf("retry unknown error = %v, want ErrNotFound", err)
	}
}

func TestJobsListing(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.EnqueueRaw(ctx, "email", nil); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	pending, err := s.Jobs(ctx, job.StatePending, 0)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	if len(pending) != 3 {
		t.Errorf("pending = %d, want 3", len(pending))
	}

	limited, _ := s.Jobs(ctx, job.StatePending, 2)
	if len(limited) != 2 {
		t.Errorf("limited = %d, want 2", len(limited))
	}
}

func TestStatsQuiescence(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()

	s.RegisterFunc("ok", func(ctx context.Context, payload []byte, h *job.Handle) ([]byte, error) {
		return nil, nil
	})
	s.RegisterFunc("bad", func(ctx context.Context, payload []byte, h *job.Handle) ([]byte, error) {
		return nil, errors.New("boom")
	})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	ok1, _ := s.EnqueueRaw(ctx, "ok", nil)
	ok2, _ := s.EnqueueRaw(ctx, "ok", nil)
	bad, _ := s.EnqueueRaw(ctx, "bad", nil, job.WithMaxRetries(1))

	waitState(t, s, ok1.ID, job.StateCompleted)
	waitState(t, s, ok2.ID, job.StateCompleted)
	waitState(t, s, bad.ID, job.StateFailed)

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Completed != 2 || st.Failed != 1 {
		t.Errorf("stats = %+v, want completed=2 failed=1", st)
	}
	if sum := st.Pending + st.Running + st.Completed + st.Failed + st.Retrying + st.Cancelled; sum != st.Total {
		t.Errorf("state counts sum to %d, Total = %d", sum, st.Total)
	}
	if st.Workers != 2 {
		t.Errorf("workers = %d, want 2", st.Workers)
	}
}

func TestCleanup(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()

	s.RegisterFunc("ok", func(ctx context.Context, payload []byte, h *job.Handle) ([]byte, error) {
		return nil, nil
	})

	// Cancel before workers start so the job can never be claimed.
	// Cancelled jobs stay in the registry until deleted explicitly.
	cancelled, _ := s.EnqueueRaw(ctx, "ok", nil)
	if err := s.Cancel(ctx, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	j, _ := s.EnqueueRaw(ctx, "ok", nil)
	waitState(t, s, j.ID, job.StateCompleted)

	time.Sleep(10 * time.Millisecond)
	removed, err := s.Cleanup(ctx, 0)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := s.Job(ctx, j.ID); !errors.Is(err, job.ErrNotFound) {
		t.Error("completed job survived cleanup")
	}
	if _, err := s.Job(ctx, cancelled.ID); err != nil {
		t.Error("cancelled job was swept")
	}
}

func TestStopIdempotentAndRejectsNewWork(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	if _, err := s.EnqueueRaw(ctx, "email", nil); !errors.Is(err, jobq.ErrStopped) {
		t.Errorf("enqueue after stop error = %v, want ErrStopped", err)
	}
	if err := s.Start(ctx); !errors.Is(err, jobq.ErrStopped) {
		t.Errorf("start after stop error = %v, want ErrStopped", err)
	}
}

type shutdownHook struct {
	fired atomic.Bool
}

func (h *shutdownHook) Name() string { return "test.shutdown" }

func (h *shutdownHook) OnShutdown(_ context.Context) error {
	h.fired.Store(true)
	return nil
}

var _ hook.Shutdown = (*shutdownHook)(nil)

func TestStopFiresShutdownHooks(t *testing.T) {
	h := &shutdownHook{}
	s := newScheduler(t, jobq.WithHook(h))
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !h.fired.Load() {
		t.Error("shutdown hook did not fire")
	}
}

func TestJanitorSweepsOldJobs(t *testing.T) {
	s := newScheduler(t,
		jobq.WithCleanupInterval(30*time.Millisecond),
		jobq.WithCleanupMaxAge(0),
	)
	ctx := context.Background()

	s.RegisterFunc("ok", func(ctx context.Context, payload []byte, h *job.Handle) ([]byte, error) {
		return nil, nil
	})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	j, _ := s.EnqueueRaw(ctx, "ok", nil)
	waitState(t, s, j.ID, job.StateCompleted)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := s.Job(ctx, j.ID); errors.Is(err, job.ErrNotFound) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("janitor never swept the completed job")
}
