package travel

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/meetpoint/internal/maps"
	"github.com/example/meetpoint/internal/models"
)

// RedisCache shares travel cells across server processes. Failures degrade
// to cache misses; the estimator then just asks the provider again.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(addr, password string, ttl time.Duration) *RedisCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisCache{client: c, prefix: "travel:", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, origin, destination models.Coord) (maps.MatrixCell, bool) {
	raw, err := c.client.Get(ctx, c.prefix+pairKey(origin, destination)).Bytes()
	if err != nil {
		return maps.MatrixCell{}, false
	}
	var cell maps.MatrixCell
	if err := json.Unmarshal(raw, &cell); err != nil {
		return maps.MatrixCell{}, false
	}
	return cell, true
}

func (c *RedisCache) Set(ctx context.Context, origin, destination models.Coord, cell maps.MatrixCell) {
	b, err := json.Marshal(cell)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.prefix+pairKey(origin, destination), b, c.ttl).Err()
}

func (c *RedisCache) Close() error { return c.client.Close() }
