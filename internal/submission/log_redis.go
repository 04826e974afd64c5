package submission

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/testgrade/internal/exam"
)

const redisSubmissionPrefix = "submissions:"

// RedisLog keeps one hash per test, field = entry id, value = record JSON.
type RedisLog struct {
	client redis.UniversalClient
}

func NewRedisLog(client redis.UniversalClient) *RedisLog {
	return &RedisLog{client: client}
}

func (l *RedisLog) Append(ctx context.Context, testID string, rec Record) (string, error) {
	id, err := newEntryID()
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}
	created, err := l.client.HSetNX(ctx, redisSubmissionPrefix+testID, id, b).Result()
	if err != nil {
		return "", exam.Unavailable("append submission", err)
	}
	if !created {
		return "", exam.Unavailable("append submission", fmt.Errorf("entry %s already exists", id))
	}
	return id, nil
}

func (l *RedisLog) ListAll(ctx context.Context, testID string) ([]Entry, error) {
	all, err := l.client.HGetAll(ctx, redisSubmissionPrefix+testID).Result()
	if err != nil {
		return nil, exam.Unavailable("list submissions", err)
	}
	out := make([]Entry, 0, len(all))
	for id, raw := range all {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode submission %s: %w", id, err)
		}
		out = append(out, Entry{ID: id, Record: rec})
	}
	return out, nil
}
