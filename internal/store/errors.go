package store

import "errors"

var (
	// ErrNotFound is returned when a row does not exist or belongs to a
	// different tenant.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on unique-constraint violations.
	ErrConflict = errors.New("conflict")
)
