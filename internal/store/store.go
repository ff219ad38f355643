package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Well-known settings keys.
const (
	SettingUserID         = "backend_user_id"
	SettingSelectedWallet = "selected_wallet_id"
	SettingRowsPerPage    = "rows_per_page"
)

// Store persists local client state between runs: manual asset valuations
// and small key/value settings such as the registered backend user id and
// the last selected wallet.
type Store struct {
	db *sql.DB
}

// Open creates the database file if needed, runs migrations and returns a
// ready store.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SetAssetValue upserts a manual valuation for an asset. Values are stored
// as integer cents to avoid float drift in the database.
func (s *Store) SetAssetValue(ctx context.Context, assetName string, value float64) error {
	cents := int64(math.Round(value * 100))
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO asset_values (asset_name, value_cents, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(asset_name) DO UPDATE SET
			value_cents = excluded.value_cents,
			updated_at  = CURRENT_TIMESTAMP`,
		assetName, cents)
	if err != nil {
		return fmt.Errorf("upsert asset value: %w", err)
	}
	return nil
}

// AssetValue returns the stored valuation for an asset, and whether one
// exists.
func (s *Store) AssetValue(ctx context.Context, assetName string) (float64, bool, error) {
	var cents int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value_cents FROM asset_values WHERE asset_name = ?`,
		assetName).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query asset value: %w", err)
	}
	return float64(cents) / 100, true, nil
}

// AssetValues returns every stored valuation keyed by asset name.
func (s *Store) AssetValues(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_name, value_cents FROM asset_values`)
	if err != nil {
		return nil, fmt.Errorf("query asset values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]float64)
	for rows.Next() {
		var name string
		var cents int64
		if err := rows.Scan(&name, &cents); err != nil {
			return nil, fmt.Errorf("scan asset value: %w", err)
		}
		values[name] = float64(cents) / 100
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset values: %w", err)
	}
	return values, nil
}

// DeleteAssetValue removes a stored valuation. Deleting a missing asset is
// not an error.
func (s *Store) DeleteAssetValue(ctx context.Context, assetName string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM asset_values WHERE asset_name = ?`, assetName)
	if err != nil {
		return fmt.Errorf("delete asset value: %w", err)
	}
	return nil
}

// SetSetting upserts a key/value setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

// Setting returns a stored setting, and whether it exists.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query setting %s: %w", key, err)
	}
	return value, true, nil
}
