package state

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend keeps the latest record per user in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]Weights
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]Weights)}
}

// Get returns a copy of the user's record.
func (m *MemoryBackend) Get(ctx context.Context, userID string) (Weights, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.records[userID]
	return w.Clone(), ok, nil
}

// Put stores a copy of w.
func (m *MemoryBackend) Put(ctx context.Context, userID string, w Weights, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = w.Clone()
	return uuid.New().String(), nil
}
