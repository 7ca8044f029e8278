package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GameDataStore keeps the last imported static game data payload.
type GameDataStore struct {
	db *DB
}

// NewGameDataStore creates a new GameDataStore.
func NewGameDataStore(db *DB) *GameDataStore {
	return &GameDataStore{db: db}
}

// Save replaces the stored payload.
func (s *GameDataStore) Save(ctx context.Context, version string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_data (id, version, payload, imported_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			payload = excluded.payload,
			imported_at = excluded.imported_at
	`, version, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving game data: %w", err)
	}
	return nil
}

// Load returns the stored payload and its version. found is false when
// nothing was imported yet.
func (s *GameDataStore) Load(ctx context.Context) (payload []byte, version string, found bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT payload, version FROM game_data WHERE id = 1`,
	).Scan(&payload, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("loading game data: %w", err)
	}
	return payload, version, true, nil
}
