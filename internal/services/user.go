package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/usermgmt/apiserver/internal/store"
	"github.com/usermgmt/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, filter types.UserFilter, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserService encapsulates user use-cases: uniqueness pre-checks,
// existence checks, and translation of storage constraint failures into
// expected error kinds.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Create inserts a new user after pre-checking username and email for
// conflicts, in that order. The pre-checks are advisory; a concurrent
// create can still trip the database constraint, which is reported as
// ErrConflict.
func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	if err := s.checkUsernameFree(ctx, user.Username); err != nil {
		return types.User{}, err
	}
	if err := s.checkEmailFree(ctx, user.Email); err != nil {
		return types.User{}, err
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		var dup *store.DuplicateError
		if errors.As(err, &dup) {
			return types.User{}, ErrConflict
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// List returns the requested page and the total count of users matching
// filter, ignoring pagination.
func (s *UserService) List(ctx context.Context, filter types.UserFilter, skip, limit int) ([]types.User, int, error) {
	return s.repo.List(ctx, filter, skip, limit)
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, &NotFoundError{ID: id}
		}
		return types.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

// Update applies the supplied fields to an existing user. Fields left
// nil in changes retain their current values. A changed username or
// email is pre-checked against other rows before the write.
func (s *UserService) Update(ctx context.Context, id int, changes types.UserUpdate) (types.User, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, &NotFoundError{ID: id}
		}
		return types.User{}, fmt.Errorf("get user %d: %w", id, err)
	}

	if changes.Username != nil && *changes.Username != current.Username {
		if err := s.checkUsernameFree(ctx, *changes.Username); err != nil {
			return types.User{}, err
		}
	}
	if changes.Email != nil && *changes.Email != current.Email {
		if err := s.checkEmailFree(ctx, *changes.Email); err != nil {
			return types.User{}, err
		}
	}

	updated, err := s.repo.Update(ctx, applyChanges(current, changes))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, &NotFoundError{ID: id}
		}
		var dup *store.DuplicateError
		if errors.As(err, &dup) {
			return types.User{}, ErrConflict
		}
		return types.User{}, fmt.Errorf("update user %d: %w", id, err)
	}
	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{ID: id}
		}
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return nil
}

func (s *UserService) checkUsernameFree(ctx context.Context, username string) error {
	_, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return &AlreadyExistsError{Field: "username", Value: username}
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check username: %w", err)
	}
	return nil
}

func (s *UserService) checkEmailFree(ctx context.Context, email string) error {
	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return &AlreadyExistsError{Field: "email", Value: email}
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check email: %w", err)
	}
	return nil
}

func applyChanges(user types.User, changes types.UserUpdate) types.User {
	if changes.Username != nil {
		user.Username = *changes.Username
	}
	if changes.Email != nil {
		user.Email = *changes.Email
	}
	if changes.FirstName != nil {
		user.FirstName = *changes.FirstName
	}
	if changes.LastName != nil {
		user.LastName = *changes.LastName
	}
	if changes.Role != nil {
		user.Role = *changes.Role
	}
	if changes.Active != nil {
		user.Active = *changes.Active
	}
	return user
}
