// Package jobq is an in-process, priority-ordered background job
// scheduler. Callers submit units of work tagged by type, payload, and
// priority; a bounded pool of workers pulls jobs in (priority, enqueue
// order), dispatches them to registered handlers, tracks progress, and
// retries failures with exponential backoff until a retry ceiling is
// hit.
//
// jobq is a library, not a service: construct a Scheduler, register
// typed job definitions, and enqueue. There is no wire protocol; any
// HTTP or CLI surface belongs to the hosting application.
//
// # Quick start
//
//	sched, err := jobq.New(jobq.WithWorkers(4))
//	if err != nil { ... }
//
//	jobq.Register(sched, job.NewDefinition("send-email",
//	    func(ctx context.Context, p EmailPayload, h *job.Handle) (any, error) {
//	        return send(ctx, p)
//	    }))
//
//	_ = sched.Start(ctx)
//	j, err := jobq.Enqueue(ctx, sched, "send-email", EmailPayload{To: "a@b.c"},
//	    job.WithPriority(job.PriorityHigh))
//
// Job state lives in a job.Store (in-memory by default, Redis-backed
// optionally); the backlog does not survive a process restart.
package jobq
