package exam

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/testgrade/internal/cache"
)

// CachedStore puts a read-through Redis cache in front of another Store.
// Cache failures are logged and never fail the call.
//
// Every Save bumps a per-test generation counter. A Load only fills the
// cache when the generation it read before loading is still current, so a
// fill racing with a Save cannot put the older version back.
type CachedStore struct {
	next   Store
	cache  *cache.Helper
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedStore(next Store, c *cache.Helper, ttl time.Duration, logger *zap.Logger) *CachedStore {
	return &CachedStore{next: next, cache: c, ttl: ttl, logger: logger}
}

func defKey(testID string) string { return "def:" + testID }
func genKey(testID string) string { return "gen:" + testID }

func (s *CachedStore) Save(ctx context.Context, d Definition) error {
	if err := s.next.Save(ctx, d); err != nil {
		return err
	}
	if err := s.cache.Bump(ctx, genKey(d.TestID)); err != nil {
		s.logger.Warn("cache generation bump failed", zap.String("test_id", d.TestID), zap.Error(err))
	}
	if err := s.cache.Delete(ctx, defKey(d.TestID)); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("test_id", d.TestID), zap.Error(err))
	}
	return nil
}

func (s *CachedStore) Load(ctx context.Context, testID string) (Definition, bool, error) {
	var d Definition
	err := s.cache.Get(ctx, defKey(testID), &d)
	if err == nil {
		return d, true, nil
	}
	if !errors.Is(err, cache.ErrCacheNotFound) && !errors.Is(err, cache.ErrCacheNotAvailable) {
		s.logger.Warn("cache read failed", zap.String("test_id", testID), zap.Error(err))
	}

	gen, genErr := s.cache.Generation(ctx, genKey(testID))
	d, ok, err := s.next.Load(ctx, testID)
	if err != nil || !ok {
		return d, ok, err
	}
	if genErr != nil {
		return d, true, nil
	}
	stored, err := s.cache.SetIfGeneration(ctx, defKey(testID), d, s.ttl, genKey(testID), gen)
	switch {
	case err != nil:
		s.logger.Warn("cache fill failed", zap.String("test_id", testID), zap.Error(err))
	case !stored:
		s.logger.Debug("cache fill skipped, definition changed while loading", zap.String("test_id", testID))
	}
	return d, true, nil
}
