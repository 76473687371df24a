package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/friendhub/internal/domain/user"
)

type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User
	order []string // insertion order, the store's natural retrieval order
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
	}
}

func (r *UsersRepo) Create(_ context.Context, u user.User) (user.User, error) {
	if err := user.Validate(u); err != nil {
		return user.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if strings.EqualFold(existing.Email, u.Email) {
			return user.User{}, user.ErrEmailTaken
		}
	}

	u = clone(u)
	if u.Friends == nil {
		u.Friends = []string{}
	}

	r.items[u.ID] = u
	r.order = append(r.order, u.ID)

	return clone(u), nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if u := r.items[id]; strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}

	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	u, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return clone(u), nil
}

func (r *UsersRepo) List(_ context.Context) ([]user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]user.User, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, clone(r.items[id]))
	}

	return out, nil
}

func (r *UsersRepo) ListExcluding(_ context.Context, ids []string) ([]user.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]user.Summary, 0, len(r.order))
	for _, id := range r.order {
		if slices.Contains(ids, id) {
			continue
		}
		out = append(out, user.Summary{ID: id, Name: r.items[id].Name})
	}

	return out, nil
}

func (r *UsersRepo) AddFriend(_ context.Context, userID, friendID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[userID]
	if !ok {
		return false, user.ErrNotFound
	}

	if u.HasFriend(friendID) {
		return false, nil
	}

	u.Friends = append(slices.Clone(u.Friends), friendID)
	u.UpdatedAt = time.Now().UTC()
	r.items[userID] = u

	return true, nil
}

func (r *UsersRepo) Ping(context.Context) error {
	return nil
}

// callers must not be able to mutate stored slices
func clone(u user.User) user.User {
	u.Hobbies = slices.Clone(u.Hobbies)
	u.Friends = slices.Clone(u.Friends)
	return u
}
