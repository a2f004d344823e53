package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrValidation    = fmt.Errorf("validation failed")
	ErrAuthorization = fmt.Errorf("not authorized")
	ErrNotFound      = fmt.Errorf("not found")
	ErrTransientIO   = fmt.Errorf("transient io failure")

	ErrEmptyBody = fmt.Errorf("%w: message body is empty", ErrValidation)

	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrNoSession          = fmt.Errorf("no active session")

	ErrWorkerPanic  = fmt.Errorf("worker panic")
	ErrUnknownTopic = fmt.Errorf("no snapshot loader for topic")
	ErrClosed       = fmt.Errorf("closed")
)

// IsRetryable reports whether err is worth retrying with backoff.
// Validation and authorization failures never are.
func IsRetryable(err error) bool {
	return stderrors.Is(err, ErrTransientIO)
}

// Transient wraps a collaborator failure so callers can tell it apart
// from domain errors.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransientIO, err)
}
