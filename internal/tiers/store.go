// Package tiers persists the tier catalog: named limit pairs and the
// per-identity overrides that assign identities to them. It provides a clean
// abstraction implemented by memory, JSON file, SQLite, and PostgreSQL
// backends. Admission state itself (bucket tables, hour counters) is never
// persisted - only the catalog that configures the limiters.
package tiers

import (
	"context"
	"time"

	"admission/internal/models"
)

// Store defines the tier catalog persistence contract.
type Store interface {
	// Tiers returns all tiers ordered by name.
	Tiers(ctx context.Context) ([]*models.Tier, error)

	// GetTier retrieves a tier by name. Returns ErrNotFound when absent.
	GetTier(ctx context.Context, name string) (*models.Tier, error)

	// SaveTier inserts or replaces a tier.
	SaveTier(ctx context.Context, tier *models.Tier) error

	// DeleteTier removes a tier. Returns ErrTierInUse while overrides still
	// reference it, ErrNotFound when absent.
	DeleteTier(ctx context.Context, name string) error

	// Overrides returns all overrides ordered by identity.
	Overrides(ctx context.Context) ([]*models.Override, error)

	// GetOverride retrieves the override for an identity. Returns ErrNotFound
	// when the identity has none.
	GetOverride(ctx context.Context, identity string) (*models.Override, error)

	// SaveOverride inserts or replaces an override. The referenced tier must
	// exist; returns ErrNotFound otherwise.
	SaveOverride(ctx context.Context, override *models.Override) error

	// DeleteOverride removes an identity's override. Returns ErrNotFound when
	// the identity has none.
	DeleteOverride(ctx context.Context, identity string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the store and cleans up resources.
	Close() error
}

// Config holds configuration for store backends.
type Config struct {
	// Type specifies the backend (memory, json, sqlite, postgres).
	Type string `json:"type" yaml:"type"`

	// Path is used by file-based backends.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// ConnectionString is used by database backends.
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	// CacheTTL bounds how long file-based backends trust their in-memory copy.
	CacheTTL time.Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
}
