package reconcile

import (
	"errors"
	"fmt"

	"catalogsync/internal"
)

var (
	ErrConcurrentRun    = errors.New("sync already running")
	ErrValidationFailed = errors.New("catalog validation failed")
)

// RejectedError reports a trigger that lost the run lock to Holder.
type RejectedError struct {
	Holder internal.SyncRun
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%v: held by run %s", ErrConcurrentRun, e.Holder.RunID)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrConcurrentRun
}

// phaseError tags a failure with the phase it happened in.
type phaseError struct {
	phase internal.Phase
	err   error
}

func (e *phaseError) Error() string {
	return string(e.phase) + ": " + e.err.Error()
}

func (e *phaseError) Unwrap() error {
	return e.err
}

func inPhase(phase internal.Phase, err error) error {
	if err == nil {
		return nil
	}
	return &phaseError{phase: phase, err: err}
}
