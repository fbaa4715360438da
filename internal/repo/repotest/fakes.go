// Package repotest provides in-memory repos that behave like the Postgres
// ones: same not-found error, same unique violation on duplicate usernames.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	dom "lendtrack/internal/domain"
	"lendtrack/internal/repo"
	"lendtrack/internal/utils"

	"github.com/jackc/pgx/v5"
)

var (
	_ repo.UserRepo = (*UserRepo)(nil)
	_ repo.ItemRepo = (*ItemRepo)(nil)
)

// UserRepo is an in-memory repo.UserRepo. Err* fields force failures.
type UserRepo struct {
	mu    sync.Mutex
	users map[string]dom.User
	now   func() time.Time

	ErrCreate    error
	ErrGet       error
	ErrSetActive error
	Creates      int
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: map[string]dom.User{}, now: time.Now}
}

func (r *UserRepo) Create(_ context.Context, u dom.User) (dom.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ErrCreate != nil {
		return dom.User{}, r.ErrCreate
	}
	for _, existing := range r.users {
		if existing.UserName == u.UserName {
			return dom.User{}, utils.UniqueViolation("users_user_name_key")
		}
	}
	now := r.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	r.users[u.ID] = u
	r.Creates++
	return u, nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (dom.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ErrGet != nil {
		return dom.User{}, r.ErrGet
	}
	u, ok := r.users[id]
	if !ok {
		return dom.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (r *UserRepo) GetByUsername(_ context.Context, userName string) (dom.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ErrGet != nil {
		return dom.User{}, r.ErrGet
	}
	for _, u := range r.users {
		if u.UserName == userName {
			return u, nil
		}
	}
	return dom.User{}, pgx.ErrNoRows
}

func (r *UserRepo) List(_ context.Context, activeOnly bool) ([]dom.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := []dom.User{}
	for _, u := range r.users {
		if activeOnly && !u.Active {
			continue
		}
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserName < list[j].UserName })
	return list, nil
}

func (r *UserRepo) Update(_ context.Context, id string, patch dom.UserPatch) (dom.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return dom.User{}, pgx.ErrNoRows
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Address != nil {
		u.Address = *patch.Address
	}
	u.UpdatedAt = r.now().UTC()
	r.users[id] = u
	return u, nil
}

func (r *UserRepo) SetActive(_ context.Context, id string, active bool) (dom.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ErrSetActive != nil {
		return dom.User{}, r.ErrSetActive
	}
	u, ok := r.users[id]
	if !ok {
		return dom.User{}, pgx.ErrNoRows
	}
	if u.Active != active {
		u.Active = active
		u.UpdatedAt = r.now().UTC()
		r.users[id] = u
	}
	return u, nil
}

// Count returns the number of stored users.
func (r *UserRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// ItemRepo is an in-memory repo.ItemRepo.
type ItemRepo struct {
	mu    sync.Mutex
	items map[string]dom.Item

	ErrFind error
	ErrMark error
}

func NewItemRepo(items ...dom.Item) *ItemRepo {
	r := &ItemRepo{items: map[string]dom.Item{}}
	for _, it := range items {
		r.items[it.ID] = it
	}
	return r
}

func (r *ItemRepo) FindHeldByOwner(_ context.Context, userID string) ([]dom.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ErrFind != nil {
		return nil, r.ErrFind
	}
	list := []dom.Item{}
	for _, it := range r.items {
		if it.OwnerID == userID && it.CustodyID == userID {
			list = append(list, it)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *ItemRepo) MarkInactive(_ context.Context, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ErrMark != nil {
		return 0, r.ErrMark
	}
	var n int64
	for _, id := range ids {
		it, ok := r.items[id]
		if !ok || !it.HeldByOwner() || it.Status == dom.ItemInactive {
			continue
		}
		it.Status = dom.ItemInactive
		r.items[id] = it
		n++
	}
	return n, nil
}

// Get returns the stored item.
func (r *ItemRepo) Get(id string) dom.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id]
}

// Put overwrites an item, e.g. to move custody mid-test.
func (r *ItemRepo) Put(it dom.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[it.ID] = it
}
