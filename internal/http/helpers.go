package http

import (
	"fmt"

	"ledger/internal/services"
)

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func invalidQuery(err error) error {
	return fmt.Errorf("%w: %w", services.ErrValidation, err)
}
