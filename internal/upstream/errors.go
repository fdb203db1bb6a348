package upstream

import (
	"errors"
	"fmt"

	"catalogsync/internal"
)

// Error is returned by every fetch that fails. Kind is either
// UpstreamUnavailable or UpstreamMalformed.
type Error struct {
	Kind     internal.ErrorKind
	Resource string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("erp %s: %s (status %d): %v", e.Resource, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("erp %s: %s: %v", e.Resource, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func unavailable(resource string, status int, err error) *Error {
	return &Error{Kind: internal.ErrUpstreamUnavailable, Resource: resource, Status: status, Err: err}
}

func malformed(resource string, err error) *Error {
	return &Error{Kind: internal.ErrUpstreamMalformed, Resource: resource, Err: err}
}

var errMissingItems = errors.New("response has no items array")
