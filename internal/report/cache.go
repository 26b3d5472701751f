package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "report:version"

// RedisCache stores rendered reports under keys stamped with a global
// version. Invalidate bumps the version, orphaning every older entry until
// its TTL runs out.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Report, bool, error) {
	versioned, err := c.key(ctx, key)
	if err != nil {
		return nil, false, err
	}
	payload, err := c.client.Get(ctx, versioned).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rep Report
	if err := json.Unmarshal(payload, &rep); err != nil {
		return nil, false, err
	}
	return &rep, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, rep *Report) error {
	versioned, err := c.key(ctx, key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, versioned, raw, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *RedisCache) key(ctx context.Context, key string) (string, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 0
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("report:%s:v%d", key, ver), nil
}
