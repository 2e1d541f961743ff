package tiers

import (
	"context"
	"sort"
	"sync"

	"admission/internal/models"
)

// MemoryStore implements Store with in-memory maps. It is the default
// backend: the tier catalog is small and a process restart simply reseeds it
// from configuration.
type MemoryStore struct {
	mu        sync.RWMutex
	tiers     map[string]*models.Tier
	overrides map[string]*models.Override
}

// NewMemoryStore creates an empty in-memory tier catalog.
func NewMemoryStore(config Config) (*MemoryStore, error) {
	return &MemoryStore{
		tiers:     make(map[string]*models.Tier),
		overrides: make(map[string]*models.Override),
	}, nil
}

func (m *MemoryStore) Tiers(ctx context.Context) ([]*models.Tier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.Tier, 0, len(m.tiers))
	for _, tier := range m.tiers {
		// Return a copy to prevent external modification
		tierCopy := *tier
		result = append(result, &tierCopy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *MemoryStore) GetTier(ctx context.Context, name string) (*models.Tier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tier, exists := m.tiers[name]
	if !exists {
		return nil, ErrNotFound
	}
	tierCopy := *tier
	return &tierCopy, nil
}

func (m *MemoryStore) SaveTier(ctx context.Context, tier *models.Tier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tierCopy := *tier
	m.tiers[tier.Name] = &tierCopy
	return nil
}

func (m *MemoryStore) DeleteTier(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tiers[name]; !exists {
		return ErrNotFound
	}
	for _, o := range m.overrides {
		if o.Tier == name {
			return ErrTierInUse
		}
	}
	delete(m.tiers, name)
	return nil
}

func (m *MemoryStore) Overrides(ctx context.Context) ([]*models.Override, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.Override, 0, len(m.overrides))
	for _, o := range m.overrides {
		oCopy := *o
		result = append(result, &oCopy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Identity < result[j].Identity })
	return result, nil
}

func (m *MemoryStore) GetOverride(ctx context.Context, identity string) (*models.Override, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, exists := m.overrides[identity]
	if !exists {
		return nil, ErrNotFound
	}
	oCopy := *o
	return &oCopy, nil
}

func (m *MemoryStore) SaveOverride(ctx context.Context, override *models.Override) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tiers[override.Tier]; !exists {
		return ErrNotFound
	}
	oCopy := *override
	m.overrides[override.Identity] = &oCopy
	return nil
}

func (m *MemoryStore) DeleteOverride(ctx context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.overrides[identity]; !exists {
		return ErrNotFound
	}
	delete(m.overrides, identity)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
