package services

import (
	stderrors "errors"
	"support-flow/errors"
)

// fromStore keeps domain errors and marks every other store failure as transient.
func fromStore(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, errors.ErrNotFound),
		stderrors.Is(err, errors.ErrUserAlreadyExists),
		errors.IsRetryable(err):
		return err
	default:
		return errors.Transient(err)
	}
}
