package limiter

import (
	"fmt"
	"sync"

	"admission/internal/models"
)

// Factory builds a Limiter from a tier definition. The service main wraps
// construction with instrumentation here, so the registry never needs to know
// about observability.
type Factory func(tier models.Tier) (Limiter, error)

// Registry maps tier names to live limiters and identities to tiers. It is
// the single resolution point for "which limiter does this identity use".
// Tier and override mutations are rare (admin operations); resolution is the
// hot path, so the registry uses a single RWMutex rather than stripes.
type Registry struct {
	defaultTier string
	factory     Factory

	mu        sync.RWMutex
	limiters  map[string]Limiter
	overrides map[string]string // identity -> tier name
}

// NewRegistry creates a registry that builds limiters with the given factory.
// The default tier must be registered via SetTier before the first Resolve.
func NewRegistry(defaultTier string, factory Factory) *Registry {
	return &Registry{
		defaultTier: defaultTier,
		factory:     factory,
		limiters:    make(map[string]Limiter),
		overrides:   make(map[string]string),
	}
}

// DefaultTier returns the tier used for identities without an override.
func (r *Registry) DefaultTier() string {
	return r.defaultTier
}

// SetTier registers or replaces the limiter for a tier. Replacing a tier
// discards its identities' accumulated windows; admitted history does not
// carry across limit changes.
func (r *Registry) SetTier(tier models.Tier) error {
	l, err := r.factory(tier)
	if err != nil {
		return fmt.Errorf("build limiter for tier %s: %w", tier.Name, err)
	}

	r.mu.Lock()
	old := r.limiters[tier.Name]
	r.limiters[tier.Name] = l
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// RemoveTier drops a tier's limiter. The default tier cannot be removed.
func (r *Registry) RemoveTier(name string) error {
	if name == r.defaultTier {
		return fmt.Errorf("cannot remove default tier %s", name)
	}

	r.mu.Lock()
	old, ok := r.limiters[name]
	delete(r.limiters, name)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("tier %s not registered", name)
	}
	old.Close()
	return nil
}

// SetOverride assigns an identity to a tier. The tier must be registered.
func (r *Registry) SetOverride(identity, tier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.limiters[tier]; !ok {
		return fmt.Errorf("tier %s not registered", tier)
	}
	r.overrides[identity] = tier
	return nil
}

// RemoveOverride returns an identity to the default tier.
func (r *Registry) RemoveOverride(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.overrides, identity)
}

// Resolve returns the tier name and limiter responsible for an identity.
// Identities whose override points at a since-removed tier fall back to the
// default tier rather than failing the request.
func (r *Registry) Resolve(identity string) (string, Limiter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tier := r.defaultTier
	if t, ok := r.overrides[identity]; ok {
		if _, registered := r.limiters[t]; registered {
			tier = t
		}
	}

	l, ok := r.limiters[tier]
	if !ok {
		return "", nil, fmt.Errorf("tier %s has no limiter registered", tier)
	}
	return tier, l, nil
}

// Tiers returns the names of all registered tiers.
func (r *Registry) Tiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		names = append(names, name)
	}
	return names
}

// Close shuts down every registered limiter.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.limiters {
		l.Close()
	}
	r.limiters = make(map[string]Limiter)
}
