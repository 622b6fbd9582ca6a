// Package apperr holds the error kinds shared by the guarantee and audit services.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrStorage         = errors.New("storage failure")
)

var kinds = []struct {
	err   error
	label string
}{
	{ErrUnauthenticated, "unauthenticated"},
	{ErrForbidden, "forbidden"},
	{ErrValidation, "validation"},
	{ErrNotFound, "not_found"},
	{ErrConflict, "conflict"},
	{ErrStorage, "storage"},
}

// Storage marks err as a persistence failure. Errors that already carry a kind are returned unchanged.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != "internal" {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Kind returns a short label for the error kind, "ok" for nil and "internal" when no kind matches.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.label
		}
	}
	return "internal"
}
