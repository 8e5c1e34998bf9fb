package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/SigNoz/marketplace-storefront/internal/db"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_store (
    k          TEXT PRIMARY KEY,
    v          TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS kv_store (
    k          VARCHAR(191) NOT NULL PRIMARY KEY,
    v          LONGTEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) CHARACTER SET utf8mb4;
`

// SQLStore keeps each key in one row of kv_store
type SQLStore struct {
	db     *db.DB
	upsert string
}

// NewSQLStore creates the kv_store table if needed
func NewSQLStore(ctx context.Context, database *db.DB) (*SQLStore, error) {
	var schema, upsert string
	switch database.Driver() {
	case db.DriverSQLite:
		schema = sqliteSchema
		upsert = "INSERT INTO kv_store (k, v, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP) ON CONFLICT(k) DO UPDATE SET v = excluded.v, updated_at = CURRENT_TIMESTAMP"
	case db.DriverMySQL:
		schema = mysqlSchema
		upsert = "INSERT INTO kv_store (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)"
	default:
		return nil, fmt.Errorf("unsupported driver %q", database.Driver())
	}

	if err := database.InitSchema(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to initialize kv_store: %w", err)
	}
	return &SQLStore{db: database, upsert: upsert}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT v FROM kv_store WHERE k = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.upsert, key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = "?"
		args[i] = k
	}

	query := fmt.Sprintf("DELETE FROM kv_store WHERE k IN (%s)", strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete %v: %w", keys, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
