package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Keys of the sync_metadata table.
const (
	MetaGameDataLastSync   = "game_data_last_sync"
	MetaGameDataVersion    = "game_data_version"
	MetaGameDataItems      = "game_data_items"
	MetaGameDataActions    = "game_data_actions"
	MetaMarketLastSync     = "market_last_sync"
	MetaMarketSnapshotTime = "market_snapshot_time"
)

// GameDataSync describes one init_client_data import.
type GameDataSync struct {
	Version string
	Items   int
	Actions int
	At      time.Time
}

// RecordGameDataSync stores the version and table sizes of an import.
func (db *DB) RecordGameDataSync(ctx context.Context, g GameDataSync) error {
	return db.InTransaction(ctx, func(tx *sql.Tx) error {
		return setMeta(ctx, tx, g.At, map[string]string{
			MetaGameDataLastSync: g.At.UTC().Format(time.RFC3339),
			MetaGameDataVersion:  g.Version,
			MetaGameDataItems:    strconv.Itoa(g.Items),
			MetaGameDataActions:  strconv.Itoa(g.Actions),
		})
	})
}

// RecordMarketSync stores when a market snapshot was taken and when it was
// saved.
func (db *DB) RecordMarketSync(ctx context.Context, taken, at time.Time) error {
	return db.InTransaction(ctx, func(tx *sql.Tx) error {
		return setMeta(ctx, tx, at, map[string]string{
			MetaMarketLastSync:     at.UTC().Format(time.RFC3339),
			MetaMarketSnapshotTime: taken.UTC().Format(time.RFC3339),
		})
	})
}

// SyncStatus returns every recorded key. Keys never written are absent.
func (db *DB) SyncStatus(ctx context.Context) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM sync_metadata`)
	if err != nil {
		return nil, fmt.Errorf("querying sync metadata: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning sync metadata: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func setMeta(ctx context.Context, tx *sql.Tx, at time.Time, kv map[string]string) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sync_metadata (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing sync metadata: %w", err)
	}
	defer stmt.Close()

	updated := at.UTC().Format(time.RFC3339)
	for k, v := range kv {
		if _, err := stmt.ExecContext(ctx, k, v, updated); err != nil {
			return fmt.Errorf("setting %s: %w", k, err)
		}
	}
	return nil
}
