package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// KVStore is a namespaced JSON key/value store.
type KVStore struct {
	db *DB
}

// NewKVStore creates a new KVStore.
func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db}
}

// GetJSON decodes the value under (namespace, key) into dst.
func (s *KVStore) GetJSON(ctx context.Context, key, namespace string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_store WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying %s/%s: %w", namespace, key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decoding %s/%s: %w", namespace, key, err)
	}
	return true, nil
}

// SetJSON stores value under (namespace, key), replacing any previous value.
func (s *KVStore) SetJSON(ctx context.Context, key, namespace string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", namespace, key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv_store (namespace, key, value, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, namespace, key, string(raw))
	if err != nil {
		return fmt.Errorf("storing %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes (namespace, key). Deleting a missing key is not an error.
func (s *KVStore) Delete(ctx context.Context, key, namespace string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_store WHERE namespace = ? AND key = ?`,
		namespace, key,
	); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Keys lists the keys of a namespace in order.
func (s *KVStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv_store WHERE namespace = ? ORDER BY key`,
		namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", namespace, err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
