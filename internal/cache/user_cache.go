package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	dom "lendtrack/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	keyListAll    = "user:list:all"
	keyListActive = "user:list:active"
	// keyListGen is bumped on every user write. Listings are stored under the
	// generation they were read in, so a fill that loses a race with a write
	// lands under a key nobody reads again.
	keyListGen = "user:list:gen"
)

// UserCache caches the user listings in Redis. Password hashes never reach
// the cache: dom.User does not marshal them.
type UserCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewUserCache returns a new UserCache.
func NewUserCache(rdb *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{rdb: rdb, ttl: ttl}
}

func listKey(gen int64, activeOnly bool) string {
	base := keyListAll
	if activeOnly {
		base = keyListActive
	}
	return fmt.Sprintf("%s:%d", base, gen)
}

// Generation returns the current listing generation. Read it before loading
// from the store and pass it to GetList/SetList.
func (c *UserCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, keyListGen).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

// GetList returns the cached listing or nil on a miss.
func (c *UserCache) GetList(ctx context.Context, gen int64, activeOnly bool) ([]dom.User, error) {
	b, err := c.rdb.Get(ctx, listKey(gen, activeOnly)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	list := []dom.User{}
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetList stores a listing read during generation gen.
func (c *UserCache) SetList(ctx context.Context, gen int64, activeOnly bool, list []dom.User) error {
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, listKey(gen, activeOnly), b, c.ttl).Err()
}

// InvalidateAll starts a new generation. Called after every user write;
// listings of older generations expire on their own.
func (c *UserCache) InvalidateAll(ctx context.Context) error {
	return c.rdb.Incr(ctx, keyListGen).Err()
}
