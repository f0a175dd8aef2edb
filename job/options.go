package job

// Options configures per-job behavior.
type Options struct {
	// Priority determines dequeue ordering. Defaults to PriorityNormal.
	Priority Priority

	// MaxRetries is the maximum number of retry attempts before the job
	// is marked failed. Fixed at creation.
	MaxRetries int
}

// DefaultOptions returns Options with the package defaults.
func DefaultOptions() Options {
	return Options{
		Priority:   PriorityNormal,
		MaxRetries: 3,
	}
}

// Option is a functional option applied at enqueue or definition time.
type Option func(*Options)

// WithPriority sets the job priority.
func WithPriority(p Priority) Option {
	return func(o *Options) { o.Priority = p }
}

// WithMaxRetries sets the retry ceiling for the job.
func WithMaxRetries(n int) Option {
	return func(o *Options) { o.MaxRetries = n }
}
