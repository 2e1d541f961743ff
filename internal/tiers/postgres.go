package tiers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"admission/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tiers (
	name TEXT PRIMARY KEY,
	max_per_minute INTEGER NOT NULL,
	max_per_hour INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS overrides (
	identity TEXT PRIMARY KEY,
	tier TEXT NOT NULL REFERENCES tiers(name),
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_overrides_tier ON overrides(tier);
`

// PostgresStore implements Store backed by PostgreSQL via a pgx connection
// pool. It is the backend for multi-replica deployments where every gateway
// must see the same catalog.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and ensures the catalog schema
// exists.
func NewPostgresStore(ctx context.Context, config Config) (*PostgresStore, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL store")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Tiers(ctx context.Context) ([]*models.Tier, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT name, max_per_minute, max_per_hour, created_at, updated_at FROM tiers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tiers: %w", err)
	}
	defer rows.Close()

	var tiers []*models.Tier
	for rows.Next() {
		var t models.Tier
		if err := rows.Scan(&t.Name, &t.MaxPerMinute, &t.MaxPerHour, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		tiers = append(tiers, &t)
	}
	return tiers, rows.Err()
}

func (p *PostgresStore) GetTier(ctx context.Context, name string) (*models.Tier, error) {
	var t models.Tier
	err := p.pool.QueryRow(ctx,
		`SELECT name, max_per_minute, max_per_hour, created_at, updated_at FROM tiers WHERE name = $1`,
		name).Scan(&t.Name, &t.MaxPerMinute, &t.MaxPerHour, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}
	return &t, nil
}

func (p *PostgresStore) SaveTier(ctx context.Context, tier *models.Tier) error {
	now := time.Now().UTC()
	createdAt := tier.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO tiers (name, max_per_minute, max_per_hour, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE SET
		   max_per_minute = EXCLUDED.max_per_minute,
		   max_per_hour = EXCLUDED.max_per_hour,
		   updated_at = EXCLUDED.updated_at`,
		tier.Name, tier.MaxPerMinute, tier.MaxPerHour, createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to save tier: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteTier(ctx context.Context, name string) error {
	// The overrides foreign key blocks deleting a referenced tier, so a
	// single statement is both the in-use guard and the delete.
	tag, err := p.pool.Exec(ctx, `DELETE FROM tiers WHERE name = $1`, name)
	if isForeignKeyViolation(err) {
		return ErrTierInUse
	}
	if err != nil {
		return fmt.Errorf("failed to delete tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) Overrides(ctx context.Context) ([]*models.Override, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT identity, tier, created_at FROM overrides ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	var overrides []*models.Override
	for rows.Next() {
		var o models.Override
		if err := rows.Scan(&o.Identity, &o.Tier, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		overrides = append(overrides, &o)
	}
	return overrides, rows.Err()
}

func (p *PostgresStore) GetOverride(ctx context.Context, identity string) (*models.Override, error) {
	var o models.Override
	err := p.pool.QueryRow(ctx,
		`SELECT identity, tier, created_at FROM overrides WHERE identity = $1`,
		identity).Scan(&o.Identity, &o.Tier, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get override: %w", err)
	}
	return &o, nil
}

func (p *PostgresStore) SaveOverride(ctx context.Context, override *models.Override) error {
	createdAt := override.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO overrides (identity, tier, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (identity) DO UPDATE SET tier = EXCLUDED.tier`,
		override.Identity, override.Tier, createdAt)
	if isForeignKeyViolation(err) {
		// The referenced tier does not exist (or was deleted concurrently).
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to save override: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteOverride(ctx context.Context, identity string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM overrides WHERE identity = $1`, identity)
	if err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// isForeignKeyViolation reports whether err is PostgreSQL error 23503.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
