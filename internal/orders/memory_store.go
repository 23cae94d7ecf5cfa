package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory order store for demo/development mode.
type MemoryStore struct {
	orders map[string]*Order // keyed by business OrderID
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory order store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]*Order),
	}
}

func copyOrder(o *Order) *Order {
	cp := *o
	if o.RiskFactors != nil {
		cp.RiskFactors = make([]string, len(o.RiskFactors))
		copy(cp.RiskFactors, o.RiskFactors)
	}
	if o.VerifiedAt != nil {
		t := *o.VerifiedAt
		cp.VerifiedAt = &t
	}
	return &cp
}

func (m *MemoryStore) Create(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[o.OrderID]; ok {
		return ErrDuplicateOrder
	}
	m.orders[o.OrderID] = copyOrder(o)
	return nil
}

func (m *MemoryStore) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (m *MemoryStore) Update(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[o.OrderID]; !ok {
		return ErrOrderNotFound
	}
	m.orders[o.OrderID] = copyOrder(o)
	return nil
}

func (m *MemoryStore) FindByPhone(ctx context.Context, phone string) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Order
	for _, o := range m.orders {
		if o.Phone == phone {
			result = append(result, copyOrder(o))
		}
	}
	sortByRisk(result)
	return result, nil
}

func (m *MemoryStore) List(ctx context.Context, f Filter) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Order
	for _, o := range m.orders {
		if f.RiskLevel != "" && o.RiskLevel != f.RiskLevel {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.City != "" && o.City != f.City {
			continue
		}
		if f.VerificationRequired != nil && o.VerificationRequired != *f.VerificationRequired {
			continue
		}
		matched = append(matched, copyOrder(o))
	}
	sortByRisk(matched)

	if f.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (m *MemoryStore) ListSince(ctx context.Context, since time.Time) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Order
	for _, o := range m.orders {
		if o.CreatedAt.Before(since) {
			continue
		}
		result = append(result, copyOrder(o))
	}
	sortByRisk(result)
	return result, nil
}

// sortByRisk orders riskiest first, newest first within a score.
func sortByRisk(orders []*Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].RiskScore != orders[j].RiskScore {
			return orders[i].RiskScore > orders[j].RiskScore
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
