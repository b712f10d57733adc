package models

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when a referenced user, item or definition does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed input, before any state is touched.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when a concurrent writer won every compare-and-set attempt.
	ErrConflict = errors.New("conflict")
)
