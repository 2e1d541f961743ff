package tiers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"admission/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tiers (
	name TEXT PRIMARY KEY,
	max_per_minute INTEGER NOT NULL,
	max_per_hour INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS overrides (
	identity TEXT PRIMARY KEY,
	tier TEXT NOT NULL REFERENCES tiers(name),
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_overrides_tier ON overrides(tier);
`

// SQLiteStore implements Store using an embedded SQLite database via the
// CGO-free modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the SQLite catalog database.
func NewSQLiteStore(config Config) (*SQLiteStore, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite store")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The embedded driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent admin calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Tiers(ctx context.Context) ([]*models.Tier, error) {
	rows, err := s.db.QueryContext(ctx,
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

func (s *SQLiteStore) GetTier(ctx context.Context, name string) (*models.Tier, error) {
	var t models.Tier
	err := s.db.QueryRowContext(ctx,
		`SELECT name, max_per_minute, max_per_hour, created_at, updated_at FROM tiers WHERE name = ?`,
		name).Scan(&t.Name, &t.MaxPerMinute, &t.MaxPerHour, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}
	return &t, nil
}

func (s *SQLiteStore) SaveTier(ctx context.Context, tier *models.Tier) error {
	now := time.Now().UTC()
	createdAt := tier.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tiers (name, max_per_minute, max_per_hour, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   max_per_minute = excluded.max_per_minute,
		   max_per_hour = excluded.max_per_hour,
		   updated_at = excluded.updated_at`,
		tier.Name, tier.MaxPerMinute, tier.MaxPerHour, createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to save tier: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteTier(ctx context.Context, name string) error {
	// The in-use check and the delete must see the same catalog state, so
	// both run in one transaction.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM overrides WHERE tier = ?`, name).Scan(&count); err != nil {
		return fmt.Errorf("failed to count overrides: %w", err)
	}
	if count > 0 {
		return ErrTierInUse
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM tiers WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete tier: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLiteStore) Overrides(ctx context.Context) ([]*models.Override, error) {
	rows, err := s.db.QueryContext(ctx,
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

func (s *SQLiteStore) GetOverride(ctx context.Context, identity string) (*models.Override, error) {
	var o models.Override
	err := s.db.QueryRowContext(ctx,
		`SELECT identity, tier, created_at FROM overrides WHERE identity = ?`,
		identity).Scan(&o.Identity, &o.Tier, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get override: %w", err)
	}
	return &o, nil
}

func (s *SQLiteStore) SaveOverride(ctx context.Context, override *models.Override) error {
	// Same transaction for the tier existence check and the upsert, so a
	// concurrent DeleteTier cannot orphan the override between them.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tiers WHERE name = ?`, override.Tier).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check tier: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	createdAt := override.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO overrides (identity, tier, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET tier = excluded.tier`,
		override.Identity, override.Tier, createdAt); err != nil {
		return fmt.Errorf("failed to save override: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteOverride(ctx context.Context, identity string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM overrides WHERE identity = ?`, identity)
	if err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
