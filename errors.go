package jobq

import "errors"

// ErrStopped is returned by operations on a scheduler that has been
// shut down.
var ErrStopped = errors.New("jobq: scheduler stopped")
