package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/usermgmt/apiserver/types"
)

// MemoryRepository is an in-process UserRepository used by tests. It
// enforces the same uniqueness rules and returns the same sentinel
// errors as the postgres-backed repository.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User

	// CreateErr and UpdateErr, when set, are returned by the next
	// mutation. Tests use them to simulate storage faults and
	// commit-time constraint races.
	CreateErr error
	UpdateErr error
	DeleteErr error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID: 1,
		users:  make(map[int]types.User),
	}
}

func (r *MemoryRepository) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryRepository) List(_ context.Context, filter types.UserFilter, offset, limit int) ([]types.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]types.User, 0, len(r.users))
	for _, user := range r.users {
		if filter.Active != nil && user.Active != *filter.Active {
			continue
		}
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		matched = append(matched, user)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	if offset >= total {
		return []types.User{}, total, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *MemoryRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.CreateErr; err != nil {
		r.CreateErr = nil
		return types.User{}, err
	}
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return types.User{}, &DuplicateError{Field: "username"}
		}
		if existing.Email == user.Email {
			return types.User{}, &DuplicateError{Field: "email"}
		}
	}

	now := time.Now().UTC()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryRepository) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.UpdateErr; err != nil {
		r.UpdateErr = nil
		return types.User{}, err
	}
	current, ok := r.users[user.ID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	for _, existing := range r.users {
		if existing.ID == user.ID {
			continue
		}
		if existing.Username == user.Username {
			return types.User{}, &DuplicateError{Field: "username"}
		}
		if existing.Email == user.Email {
			return types.User{}, &DuplicateError{Field: "email"}
		}
	}

	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.DeleteErr; err != nil {
		r.DeleteErr = nil
		return err
	}
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}
