package verification

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory challenge store for demo/development mode.
type MemoryStore struct {
	challenges map[string]*Challenge
	mu         sync.RWMutex
}

// NewMemoryStore creates a new in-memory challenge store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[string]*Challenge),
	}
}

func (m *MemoryStore) Put(ctx context.Context, ch *Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *ch
	m.challenges[ch.OrderID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, orderID string) (*Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ch, ok := m.challenges[orderID]
	if !ok {
		return nil, ErrNoChallenge
	}
	cp := *ch
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, ch *Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.challenges[ch.OrderID]; !ok {
		return ErrNoChallenge
	}
	cp := *ch
	m.challenges[ch.OrderID] = &cp
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.challenges[orderID]; !ok {
		return ErrNoChallenge
	}
	delete(m.challenges, orderID)
	return nil
}
