package jobq

// Stats is a point-in-time snapshot of scheduler state: job counts per
// lifecycle state plus queue and worker occupancy. At quiescence (no
// jobs in flight, no retries pending) the per-state counts sum to Total.
type Stats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Retrying  int `json:"retrying"`
	Cancelled int `json:"cancelled"`

	// Total is the number of jobs currently in the registry,
	// whatever their state.
	Total int `json:"total"`

	// QueueDepth is the number of entries in the ready queue. It can
	// exceed Pending momentarily: cancelled jobs keep their queue entry
	// until a worker dequeues and drops it.
	QueueDepth int `json:"queue_depth"`

	// Workers is the configured pool size; BusyWorkers of them are
	// executing a job right now.
	Workers     int `json:"workers"`
	BusyWorkers int `json:"busy_workers"`
}
