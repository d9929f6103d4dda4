package policy

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory policy store for demo/development mode.
type MemoryStore struct {
	policies map[string]*CancellationPolicy
	byCoach  map[string]string // coachID -> policyID
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]*CancellationPolicy),
		byCoach:  make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, p *CancellationPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.policies[p.ID] = copyPolicy(p)
	m.byCoach[p.CoachID] = p.ID
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*CancellationPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.policies[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	return copyPolicy(p), nil
}

func (m *MemoryStore) GetByCoach(ctx context.Context, coachID string) (*CancellationPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCoach[coachID]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	return copyPolicy(m.policies[id]), nil
}

func (m *MemoryStore) Update(ctx context.Context, p *CancellationPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.policies[p.ID]; !ok {
		return ErrPolicyNotFound
	}
	m.policies[p.ID] = copyPolicy(p)
	return nil
}

// copyPolicy returns a deep copy so callers cannot mutate stored tiers
// through the shared slice backing array.
func copyPolicy(p *CancellationPolicy) *CancellationPolicy {
	cp := *p
	if p.Tiers != nil {
		cp.Tiers = make([]Tier, len(p.Tiers))
		copy(cp.Tiers, p.Tiers)
	}
	return &cp
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
