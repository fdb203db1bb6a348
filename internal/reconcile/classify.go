package reconcile

import (
	"errors"

	"catalogsync/internal"
	"catalogsync/internal/storage"
	"catalogsync/internal/upstream"
)

// classify maps a run failure to the structured error kept as lastError.
func classify(err error) *internal.SyncError {
	if err == nil {
		return nil
	}
	out := &internal.SyncError{Kind: internal.ErrInternal, Message: err.Error()}

	var pe *phaseError
	if errors.As(err, &pe) {
		out.Phase = pe.phase
	}

	var upErr *upstream.Error
	switch {
	case errors.As(err, &upErr):
		out.Kind = upErr.Kind
		out.Resource = upErr.Resource
		out.Status = upErr.Status
	case errors.Is(err, ErrValidationFailed):
		out.Kind = internal.ErrValidationFailed
	case errors.Is(err, storage.ErrRunSuperseded), errors.Is(err, ErrConcurrentRun):
		out.Kind = internal.ErrConcurrentRunRejected
	}
	return out
}
