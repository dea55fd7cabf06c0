package service

import "errors"

var (
	// ErrValidation wraps every rejected input.
	ErrValidation = errors.New("validation failed")

	// ErrNotDue is returned for inactive definitions or ones scheduled in the future.
	ErrNotDue = errors.New("recurrence is not due")

	// ErrAlreadyClaimed means another run is materializing the definition.
	ErrAlreadyClaimed = errors.New("recurrence already claimed")

	ErrNoActiveRules   = errors.New("no active notification rules")
	ErrNoMatchingTasks = errors.New("no tasks match the active rules")
)

// RunSummary counts the outcome of one batch job run.
type RunSummary struct {
	Processed int
	Skipped   int
	Failed    int
}
