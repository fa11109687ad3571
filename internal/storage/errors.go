package storage

import (
	"errors"
	"fmt"
)

// Common storage errors shared by all backend implementations. The
// dispatch core translates these into the domain error taxonomy at its
// boundary.
var (
	// ErrNotFound is returned when the addressed object does not exist
	// (or is soft-deleted and the caller did not opt in to seeing it).
	ErrNotFound = errors.New("object not found")

	// ErrRelatedNotFound is returned when a relationship payload
	// references an object that does not exist in the related store.
	ErrRelatedNotFound = fmt.Errorf("%w: related object", ErrNotFound)

	// ErrUnknownRelationship is returned when a relationship operation
	// names a field the backend has no association for.
	ErrUnknownRelationship = errors.New("unknown relationship field")

	// ErrUnknownField is returned when a filter or sort references a
	// field the backend does not recognize.
	ErrUnknownField = errors.New("unknown field")

	// ErrConflict is returned when a write violates a uniqueness
	// constraint.
	ErrConflict = errors.New("conflicting object")
)
