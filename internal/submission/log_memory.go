package submission

import (
	"context"
	"fmt"
	"sync"

	"github.com/mind-engage/testgrade/internal/exam"
)

type MemoryLog struct {
	mu      sync.RWMutex
	entries map[string]map[string]Record // testID -> entryID -> record
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{entries: map[string]map[string]Record{}}
}

func (m *MemoryLog) Append(_ context.Context, testID string, rec Record) (string, error) {
	id, err := newEntryID()
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.entries[testID]
	if !ok {
		byID = map[string]Record{}
		m.entries[testID] = byID
	}
	if _, dup := byID[id]; dup {
		return "", exam.Unavailable("append submission", fmt.Errorf("entry %s already exists", id))
	}
	byID[id] = rec.clone()
	return id, nil
}

func (m *MemoryLog) ListAll(_ context.Context, testID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.entries[testID]))
	for id, rec := range m.entries[testID] {
		out = append(out, Entry{ID: id, Record: rec.clone()})
	}
	return out, nil
}
