// Package redis backs the rubric cache and session liveness markers with
// Redis, falling through to the database loader on cache miss.
package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"rubric-eval-service/internal/domain"
	"rubric-eval-service/internal/infra/memory"
)

const rubricKey = "rubric:items"

// RubricCache caches the flat rubric rows as one JSON blob and rebuilds the
// rubric on read. Editor writes invalidate the key so new sessions pick the
// edit up.
type RubricCache struct {
	client *redis.Client
	loader memory.RubricLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewRubricCache(client *redis.Client, loader memory.RubricLoader, ttl time.Duration) *RubricCache {
	return &RubricCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *RubricCache) GetRubric(ctx context.Context) (domain.Rubric, error) {
	if rubric, ok := c.fromCache(ctx); ok {
		return rubric, nil
	}

	result, err, _ := c.sf.Do(rubricKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if rubric, ok := c.fromCache(ctx); ok {
			return rubric, nil
		}

		rows, err := c.loader.LoadRubricItems(ctx)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(rows); err == nil {
			// best-effort cache fill
			_ = c.client.Set(ctx, rubricKey, data, c.ttlWithJitter()).Err()
		}
		return domain.BuildRubric(rows), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.Rubric), nil
}

// InvalidateRubric drops the cached rows.
func (c *RubricCache) InvalidateRubric(ctx context.Context) error {
	return c.client.Del(ctx, rubricKey).Err()
}

func (c *RubricCache) fromCache(ctx context.Context) (domain.Rubric, bool) {
	data, err := c.client.Get(ctx, rubricKey).Bytes()
	if err != nil || len(data) == 0 {
		return nil, false
	}
	var rows []domain.RubricItem
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}
	return domain.BuildRubric(rows), true
}

func (c *RubricCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
