package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

var (
	errUserNotFound        = apperr.NotFound("User not found")
	errEmailAlreadyUsed    = apperr.DuplicateKey("Email already registered")
	errUsernameAlreadyUsed = apperr.DuplicateKey("Username already taken")
)

type UsersRepo struct {
	mu         sync.RWMutex
	items      map[string]user.User
	byEmail    map[string]string
	byUsername map[string]string
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:      make(map[string]user.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

func (r *UsersRepo) Create(_ context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[u.Email]; ok {
		return user.User{}, errEmailAlreadyUsed
	}
	if _, ok := r.byUsername[u.Username]; ok {
		return user.User{}, errUsernameAlreadyUsed
	}

	r.items[u.ID] = u
	r.byEmail[u.Email] = u.ID
	r.byUsername[u.Username] = u.ID

	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return user.User{}, errUserNotFound
	}

	return r.items[id], nil
}

func (r *UsersRepo) GetByUsername(_ context.Context, username string) (user.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return user.Identity{}, errUserNotFound
	}

	return r.items[id].Identity(), nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.Identity{}, errUserNotFound
	}

	return u.Identity(), nil
}

func (r *UsersRepo) GetPasswordHash(_ context.Context, id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return "", errUserNotFound
	}

	return u.PasswordHash, nil
}

func (r *UsersRepo) UpdateUsername(_ context.Context, id, username string) (user.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.Identity{}, errUserNotFound
	}

	if u.Username == username {
		return u.Identity(), nil
	}

	if otherID, taken := r.byUsername[username]; taken && otherID != id {
		return user.Identity{}, errUsernameAlreadyUsed
	}

	delete(r.byUsername, u.Username)
	u.Username = username
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u
	r.byUsername[username] = id

	return u.Identity(), nil
}

func (r *UsersRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return errUserNotFound
	}

	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return nil
}

// OwnerSummaries returns display fields for every known id; unknown ids are skipped.
func (r *UsersRepo) OwnerSummaries(_ context.Context, ids []string) (map[string]task.OwnerSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]task.OwnerSummary, len(ids))
	for _, id := range ids {
		if u, ok := r.items[id]; ok {
			out[id] = task.OwnerSummary{ID: u.ID, Username: u.Username, Email: u.Email}
		}
	}

	return out, nil
}
