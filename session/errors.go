package session

import "errors"

// Sentinel causes carried by the typed errors below.
var (
	ErrClosed      = errors.New("session is closed")
	ErrAlreadyOpen = errors.New("session is already open")
	ErrStaleHandle = errors.New("stale session handle")
	ErrFaulted     = errors.New("session faulted")
	ErrCorrupted   = errors.New("session state is corrupted")
	ErrEngineDown  = errors.New("engine is not running")
	ErrUnsupported = errors.New("operation not supported by core")
)

// InitializationError reports a failed open. The session stays CLOSED.
type InitializationError struct {
	Op  string
	Err error
}

func (e *InitializationError) Error() string {
	return "session " + e.Op + ": " + e.Err.Error()
}

func (e *InitializationError) Unwrap() error { return e.Err }

// RuntimeError reports a failed frame step or input update. When caused
// by a core fault the session is unusable until Close.
type RuntimeError struct {
	Op  string
	Err error
}

func (e *RuntimeError) Error() string {
	return "session " + e.Op + ": " + e.Err.Error()
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// StateError reports a failed save or load. After a failed load the
// session is corrupted until Close.
type StateError struct {
	Op  string
	Err error
}

func (e *StateError) Error() string {
	return "session " + e.Op + ": " + e.Err.Error()
}

func (e *StateError) Unwrap() error { return e.Err }
