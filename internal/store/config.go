package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ConfigValue returns the value for key, or def if the key is absent.
// Config is always read fresh at the decision point, never cached.
func (s *Store) ConfigValue(ctx context.Context, key, def string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, placeholder(s.driver, `SELECT value FROM config WHERE key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("read config %q: %w", key, err)
	}
	return value, nil
}

// SetConfig upserts a config key/value pair.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	if s.driver == "pgx" {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO config (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = $2`, key, value)
		if err != nil {
			return fmt.Errorf("set config %q: %w", key, err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set config %q: %w", key, err)
	}
	return nil
}

// AllConfig returns every config key/value pair.
func (s *Store) AllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan config row: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
