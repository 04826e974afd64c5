package watch

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mind-engage/testgrade/internal/exam"
)

// Watcher turns a Bus into callback subscriptions that start with the
// current definition.
type Watcher struct {
	tests  exam.Store
	bus    Bus
	logger *zap.Logger
}

func NewWatcher(tests exam.Store, bus Bus, logger *zap.Logger) *Watcher {
	return &Watcher{tests: tests, bus: bus, logger: logger}
}

// Subscribe calls fn with the stored definition of testID, if there is
// one, and then with versions saved afterwards. Calls are serialized; when
// fn falls behind, intermediate versions are skipped and the latest one is
// delivered.
// Once the returned unsubscribe func has returned no new call of fn
// begins and, unless it was called from inside fn, the subscription has
// released its resources. A call of fn already in progress on another
// goroutine is allowed to finish. unsubscribe is safe to call more than
// once and from inside fn.
func (w *Watcher) Subscribe(ctx context.Context, testID string, fn func(exam.Definition)) (unsubscribe func(), err error) {
	ctx, cancel := context.WithCancel(ctx)

	// listen before loading so a save in between is not lost
	changes, err := w.bus.Listen(ctx, testID)
	if err != nil {
		cancel()
		return nil, err
	}
	current, ok, err := w.tests.Load(ctx, testID)
	if err != nil {
		cancel()
		return nil, err
	}

	var (
		mu         sync.Mutex
		closed     atomic.Bool
		inCallback atomic.Bool
		done       = make(chan struct{})
	)
	deliver := func(d exam.Definition) {
		mu.Lock()
		defer mu.Unlock()
		if closed.Load() {
			return
		}
		inCallback.Store(true)
		defer inCallback.Store(false)
		fn(d)
	}

	go func() {
		defer close(done)
		if ok {
			deliver(current)
		}
		for d := range changes {
			deliver(d)
		}
	}()

	w.logger.Debug("subscribed", zap.String("test_id", testID))
	return func() {
		closed.Store(true)
		cancel()
		// from inside fn the delivery goroutine cannot finish until fn returns
		if !inCallback.Load() {
			<-done
		}
	}, nil
}

// NotifyingStore publishes every successfully saved definition.
type NotifyingStore struct {
	exam.Store
	bus    Bus
	logger *zap.Logger
}

func NewNotifyingStore(next exam.Store, bus Bus, logger *zap.Logger) *NotifyingStore {
	return &NotifyingStore{Store: next, bus: bus, logger: logger}
}

// Save does not fail when only the notification could not be sent; the
// definition is already stored at that point.
func (s *NotifyingStore) Save(ctx context.Context, d exam.Definition) error {
	if err := s.Store.Save(ctx, d); err != nil {
		return err
	}
	if err := s.bus.Publish(ctx, d.Normalized()); err != nil {
		s.logger.Warn("publish test change failed", zap.String("test_id", d.TestID), zap.Error(err))
	}
	return nil
}
