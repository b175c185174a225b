package errs

import (
	"errors"
	"fmt"
)

// Error kinds shared by the storage gateways and the pipeline.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRemote       = errors.New("remote service error")
)

// RemoteError wraps a failed call to an external service with the operation and key it targeted.
type RemoteError struct {
	Op     string
	Target string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRemote) match any RemoteError.
func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// Remote builds a RemoteError. A nil err returns nil.
func Remote(op, target string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Target: target, Err: err}
}

// Invalid returns an ErrInvalidInput with a message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound describing what was missing.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflict returns an ErrConflict with a message.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
