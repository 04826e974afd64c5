package exam

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu    sync.RWMutex
	tests map[string]Definition
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tests: map[string]Definition{}}
}

func (m *MemoryStore) Save(_ context.Context, d Definition) error {
	if err := Validate(d); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[d.TestID] = d.Normalized()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, testID string) (Definition, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.tests[testID]
	if !ok {
		return Definition{}, false, nil
	}
	return d.Clone(), true, nil
}
