package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"rubric-eval-service/internal/domain"
)

// RubricLoader fetches the flat rubric rows from a backing store.
type RubricLoader interface {
	LoadRubricItems(ctx context.Context) ([]domain.RubricItem, error)
}

// RubricCache caches the assembled rubric with a TTL so every session join
// does not hit the database.
type RubricCache struct {
	loader RubricLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	cached    domain.Rubric
	expiresAt time.Time
}

func NewRubricCache(loader RubricLoader, ttl time.Duration) *RubricCache {
	return &RubricCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *RubricCache) GetRubric(ctx context.Context) (domain.Rubric, error) {
	now := c.clock()

	c.mu.RLock()
	if c.cached != nil && c.expiresAt.After(now) {
		rubric := c.cached
		c.mu.RUnlock()
		return rubric.Clone(), nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("rubric", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.cached != nil && c.expiresAt.After(now) {
			rubric := c.cached
			c.mu.RUnlock()
			return rubric, nil
		}
		c.mu.RUnlock()

		rows, err := c.loader.LoadRubricItems(ctx)
		if err != nil {
			return nil, err
		}
		rubric := domain.BuildRubric(rows)

		c.mu.Lock()
		c.cached = rubric
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return rubric, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.Rubric).Clone(), nil
}

// InvalidateRubric drops the cached snapshot so the next read reloads.
func (c *RubricCache) InvalidateRubric(_ context.Context) error {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
	return nil
}

func (c *RubricCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
