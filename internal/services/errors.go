package services

import (
	"errors"
	"fmt"

	"ledger/internal/storage"
)

var (
	// ErrValidation marks input rejected at the boundary. The wrapped error says why.
	ErrValidation = errors.New("validation failed")

	ErrNotFound        = storage.ErrNotFound
	ErrUnknownAccount  = errors.New("unknown account")
	ErrUnknownCategory = errors.New("unknown category")
	ErrAccountInUse    = errors.New("account is linked to a subscription")
	ErrDuplicateName   = errors.New("name already in use")
)

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// reference resolves a lookup of a referenced entity, turning a missing row
// into a validation error of the given kind.
func reference(kind error, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return invalid(fmt.Errorf("%w %q", kind, id))
	}
	return err
}
