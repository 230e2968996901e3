package settings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motoservis-erp/motoservis-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for admin settings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get reads one value. The second return reports presence.
func (r *Repository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM admin_settings WHERE key = $1`, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings: get %s: %w (%v)", key, shared.ErrStorage, err)
	}
	return value, true, nil
}

// All returns every persisted entry.
func (r *Repository) All(ctx context.Context) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM admin_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("settings: list: %w (%v)", shared.ErrStorage, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("settings: scan: %w (%v)", shared.ErrStorage, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Set upserts one value.
func (r *Repository) Set(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO admin_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := r.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("settings: set %s: %w (%v)", key, shared.ErrStorage, err)
	}
	return nil
}
