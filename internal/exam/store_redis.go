package exam

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisTestPrefix = "tests:"

// RedisStore keeps each definition as one JSON value under tests:{id}.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, d Definition) error {
	if err := Validate(d); err != nil {
		return err
	}
	b, err := json.Marshal(d.Normalized())
	if err != nil {
		return &InvalidDefinitionError{TestID: d.TestID, Reason: err.Error()}
	}
	if err := s.client.Set(ctx, redisTestPrefix+d.TestID, b, 0).Err(); err != nil {
		return Unavailable("save test", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, testID string) (Definition, bool, error) {
	b, err := s.client.Get(ctx, redisTestPrefix+testID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Definition{}, false, nil
		}
		return Definition{}, false, Unavailable("load test", err)
	}
	d, err := Decode(b)
	if err != nil {
		return Definition{}, false, err
	}
	return d, true, nil
}
