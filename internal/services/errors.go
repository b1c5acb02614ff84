package services

import (
	"errors"
	"fmt"
)

// ErrConflict signals a uniqueness violation detected by the database at
// commit time, after the advisory pre-checks had already passed.
var ErrConflict = errors.New("data constraint violation")

// NotFoundError reports that no user exists with the given id.
type NotFoundError struct {
	ID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user with id=%d not found", e.ID)
}

// AlreadyExistsError reports a uniqueness conflict found by a pre-check.
type AlreadyExistsError struct {
	Field string
	Value string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("user with %s='%s' already exists", e.Field, e.Value)
}
