package domain

import "errors"

var (
	// ErrEntityNotFound is returned when the record store holds no revisions
	// for the requested entity.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrUnknownEntityKind is returned for kinds with no registered schema.
	ErrUnknownEntityKind = errors.New("unknown entity kind")
)
