package scheduler

import "errors"

// Sentinel errors for the scheduler package.
// Use errors.Is to check: errors.Is(err, scheduler.ErrInvalidParams)
var (
	ErrInvalidParams = errors.New("scheduler: parameters out of bounds")
)
