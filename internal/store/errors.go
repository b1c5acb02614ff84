package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// DuplicateError is returned when the database rejects a mutation
// because a uniqueness constraint was violated. Field names the
// offending column when it can be determined from the constraint.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	if e.Field == "" {
		return "duplicate record"
	}
	return fmt.Sprintf("duplicate %s", e.Field)
}
