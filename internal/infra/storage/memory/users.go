package memory

import (
	"context"
	"sort"
	"sync"

	domainuser "dmchat/internal/domain/user"
)

// UserRepository stores users in memory. Not suitable for production.
type UserRepository struct {
	mu      sync.RWMutex
	seq     int64
	byID    map[domainuser.ID]*domainuser.User
	byEmail map[string]domainuser.ID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[domainuser.ID]*domainuser.User),
		byEmail: make(map[string]domainuser.ID),
	}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byID[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domainuser.ErrNotFound
}

// ByIDs skips unknown ids.
func (r *UserRepository) ByIDs(ctx context.Context, ids []domainuser.ID) ([]*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainuser.User, 0, len(ids))
	seen := make(map[domainuser.ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if u, ok := r.byID[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[domainuser.NormalizeEmail(email)]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	if u, ok := r.byID[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domainuser.ErrNotFound
}

func (r *UserRepository) List(ctx context.Context) ([]*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainuser.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *UserRepository) Create(ctx context.Context, u *domainuser.User) error {
	if u == nil {
		return domainuser.ErrIDRequired
	}
	emailKey := domainuser.NormalizeEmail(u.Email)
	if emailKey == "" {
		return domainuser.ErrEmailRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[emailKey]; ok {
		return domainuser.ErrEmailAlreadyUsed
	}
	r.seq++
	u.ID = domainuser.ID(r.seq)
	r.byEmail[emailKey] = u.ID
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *domainuser.User) error {
	if u == nil || !u.ID.Valid() {
		return domainuser.ErrIDRequired
	}
	emailKey := domainuser.NormalizeEmail(u.Email)
	if emailKey == "" {
		return domainuser.ErrEmailRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[u.ID]
	if !ok {
		return domainuser.ErrNotFound
	}
	if owner, ok := r.byEmail[emailKey]; ok && owner != u.ID {
		return domainuser.ErrEmailAlreadyUsed
	}
	delete(r.byEmail, domainuser.NormalizeEmail(current.Email))
	r.byEmail[emailKey] = u.ID
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id domainuser.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[id]
	if !ok {
		return domainuser.ErrNotFound
	}
	delete(r.byEmail, domainuser.NormalizeEmail(current.Email))
	delete(r.byID, id)
	return nil
}

func cloneUser(u *domainuser.User) *domainuser.User {
	if u == nil {
		return nil
	}
	copyUser := *u
	return &copyUser
}

var _ domainuser.Repository = (*UserRepository)(nil)
