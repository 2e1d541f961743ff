package tiers

import (
	"context"
	"fmt"

	"admission/internal/models"
)

// NewStore creates a Store backend from server configuration.
func NewStore(ctx context.Context, config models.StoreConfig) (Store, error) {
	switch config.Type {
	case models.StoreTypeMemory, "":
		return NewMemoryStore(Config{Type: models.StoreTypeMemory})
	case models.StoreTypeJSON:
		if config.Path == "" {
			return nil, fmt.Errorf("path is required for JSON store")
		}
		return NewJSONStore(Config{Type: config.Type, Path: config.Path})
	case models.StoreTypeSQLite:
		return NewSQLiteStore(Config{Type: config.Type, ConnectionString: config.Database.DSN})
	case models.StoreTypePostgres:
		return NewPostgresStore(ctx, Config{Type: config.Type, ConnectionString: config.Database.DSN})
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}
