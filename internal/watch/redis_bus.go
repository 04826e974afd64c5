package watch

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mind-engage/testgrade/internal/exam"
)

// RedisBus uses one Redis pub/sub channel per test. The client is owned by
// the caller and is not closed by Close.
type RedisBus struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

func NewRedisBus(client redis.UniversalClient, topic string, logger *zap.Logger) *RedisBus {
	if topic == "" {
		topic = DefaultTopic
	}
	return &RedisBus{client: client, prefix: topic + ":", logger: logger}
}

func (b *RedisBus) channel(testID string) string { return b.prefix + testID }

func (b *RedisBus) Publish(ctx context.Context, d exam.Definition) error {
	payload, err := encode(d)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel(d.TestID), payload).Err(); err != nil {
		return exam.Unavailable("publish change", err)
	}
	return nil
}

func (b *RedisBus) Listen(ctx context.Context, testID string) (<-chan exam.Definition, error) {
	ps := b.client.Subscribe(ctx, b.channel(testID))
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, exam.Unavailable("subscribe", err)
	}

	out := make(chan exam.Definition, 1)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				d, err := decode([]byte(m.Payload))
				if err != nil {
					b.logger.Warn("dropping undecodable change", zap.String("test_id", testID), zap.Error(err))
					continue
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBus) Close() error { return nil }
