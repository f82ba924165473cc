package domain

import (
	"errors"
	"fmt"
)

// Validation errors are raised locally, before any network call.
var (
	// ErrEmptyName indicates a blank session name
	ErrEmptyName = errors.New("session name must not be blank")
	// ErrEmptyQuestion indicates a blank question
	ErrEmptyQuestion = errors.New("question must not be blank")
	// ErrInvalidAlpha indicates an alpha that cannot be clamped
	ErrInvalidAlpha = errors.New("alpha must be a number")
	// ErrBusy indicates an ask is already in flight for the session
	ErrBusy = errors.New("a question is already in flight")
	// ErrNoActiveSession indicates the ask targets a session that is not active
	ErrNoActiveSession = errors.New("no active session")
	// ErrSessionNotFound indicates the session is not in the loaded list
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotReady indicates the backend has not passed its health check
	ErrNotReady = errors.New("backend not ready")
	// ErrNotFound indicates a resource missing on the backend side
	ErrNotFound = errors.New("resource not found")
)

// TransportError represents an unreachable backend
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error [%s]: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BackendError represents a non-2xx response
type BackendError struct {
	Op     string
	Status int
	Code   string // backend "detail", when present
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error [%s]: status %d: %s", e.Op, e.Status, e.Code)
	}
	return fmt.Sprintf("backend error [%s]: status %d", e.Op, e.Status)
}

// DecodeError represents a malformed response body
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error [%s]: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err was raised locally without a network call
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrEmptyName, ErrEmptyQuestion, ErrInvalidAlpha, ErrBusy,
		ErrNoActiveSession, ErrSessionNotFound, ErrNotReady,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
