package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hourbook/hourbook/internal/storage/sqlite/migrations"
)

// GetSetting returns the value stored under key, or "" if it is unset
func (s *SQLiteStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores value under key
func (s *SQLiteStorage) SetSetting(ctx context.Context, key, value string) error {
	return s.withTx(ctx, func(conn *sql.Conn) error {
		return setSetting(ctx, conn, key, value)
	})
}

func setSetting(ctx context.Context, ex migrations.Executor, key, value string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// GetAllSettings returns every stored setting
func (s *SQLiteStorage) GetAllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}
