package job

import "context"

// Definition is a typed job definition. T is the payload type and must
// be JSON-serializable. The handler's non-error return value is stored
// as the job result.
type Definition[T any] struct {
	// Name is the job type this definition handles.
	Name string

	// Handler processes the decoded payload. The Handle is a side
	// channel for progress reporting while the job runs.
	Handler func(ctx context.Context, payload T, h *Handle) (any, error)

	// Opts configures retries and priority for jobs of this type.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T any](name string, handler func(ctx context.Context, payload T, h *Handle) (any, error), opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Name:    name,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}
