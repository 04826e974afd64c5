package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")
)

// Helper stores JSON values under a common key prefix. A nil client turns
// every write into a no-op and every read into ErrCacheNotAvailable, so
// callers can run without Redis.
type Helper struct {
	client redis.UniversalClient
	prefix string
}

func NewHelper(client redis.UniversalClient, prefix string) *Helper {
	return &Helper{client: client, prefix: prefix}
}

func (c *Helper) Key(key string) string {
	return c.prefix + key
}

// Get retrieves and unmarshals data from cache.
func (c *Helper) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}
	data, err := c.client.Get(ctx, c.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal: %w", err)
	}
	return nil
}

// Set marshals and stores data in cache.
func (c *Helper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return c.client.Set(ctx, c.Key(key), data, ttl).Err()
}

// Delete removes keys, pipelining when there is more than one.
func (c *Helper) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.Key(k)
	}
	if len(full) > 1 {
		pipe := c.client.Pipeline()
		pipe.Del(ctx, full...)
		_, err := pipe.Exec(ctx)
		return err
	}
	return c.client.Del(ctx, full...).Err()
}

// Generation returns the counter stored under key, "0" when it was never
// bumped.
func (c *Helper) Generation(ctx context.Context, key string) (string, error) {
	if c.client == nil {
		return "", ErrCacheNotAvailable
	}
	gen, err := c.client.Get(ctx, c.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache generation: %w", err)
	}
	return gen, nil
}

// Bump increments the counter stored under key.
func (c *Helper) Bump(ctx context.Context, key string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.Key(key)).Err()
}

// SetIfGeneration stores value like Set, but only while the counter under
// genKey still equals gen. It reports whether the value was stored.
func (c *Helper) SetIfGeneration(ctx context.Context, key string, value interface{}, ttl time.Duration, genKey, gen string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("cache marshal: %w", err)
	}
	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, c.Key(genKey)).Result()
		switch {
		case errors.Is(err, redis.Nil):
			cur = "0"
		case err != nil:
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.Key(key), data, ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, c.Key(genKey))
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache set: %w", err)
	}
	return stored, nil
}

// Ping verifies cache connectivity.
func (c *Helper) Ping(ctx context.Context) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}
	return nil
}
