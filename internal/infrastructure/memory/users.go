package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"ecselfservice/internal/domain"
)

// UserRepository keeps login profiles in process memory. Used for local
// development when no table is configured.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: map[string]domain.User{}}
}

func (r *UserRepository) Save(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *UserRepository) Get(_ context.Context, login string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[login]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *UserRepository) Touch(_ context.Context, login string, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[login]
	if !ok {
		return domain.ErrNotFound
	}
	user.LastSeen = lastSeen.UTC()
	r.users[login] = user
	return nil
}

func cloneUser(u domain.User) domain.User {
	u.Roles = slices.Clone(u.Roles)
	u.Teams = slices.Clone(u.Teams)
	return u
}
