package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rsned/idle-economy-server/internal/economy/market"
	"github.com/rsned/idle-economy-server/pkg/economy"
)

// MarketStore keeps market snapshots.
type MarketStore struct {
	db *DB
}

// NewMarketStore creates a new MarketStore.
func NewMarketStore(db *DB) *MarketStore {
	return &MarketStore{db: db}
}

// SaveSnapshot stores snap as a new snapshot row with all of its quotes.
func (s *MarketStore) SaveSnapshot(ctx context.Context, snap market.Snapshot) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO market_snapshots (taken_at) VALUES (?)`,
			snap.Timestamp.Unix(),
		)
		if err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading snapshot id: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO market_quotes (snapshot_id, item_hrid, level, ask, bid)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for hrid, levels := range snap.Quotes {
			for lvl, q := range levels {
				if _, err := stmt.ExecContext(ctx, id, hrid, lvl, q.Ask, q.Bid); err != nil {
					return fmt.Errorf("inserting quote for %s: %w", hrid, err)
				}
			}
		}
		return nil
	})
}

// LoadLatest returns the most recent snapshot. found is false when none has
// been saved.
func (s *MarketStore) LoadLatest(ctx context.Context) (snap market.Snapshot, found bool, err error) {
	var (
		id      int64
		takenAt int64
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT id, taken_at FROM market_snapshots
		ORDER BY taken_at DESC, id DESC
		LIMIT 1
	`).Scan(&id, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Snapshot{}, false, nil
	}
	if err != nil {
		return market.Snapshot{}, false, fmt.Errorf("querying latest snapshot: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_hrid, level, ask, bid
		FROM market_quotes
		WHERE snapshot_id = ?
	`, id)
	if err != nil {
		return market.Snapshot{}, false, fmt.Errorf("querying quotes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snap = market.Snapshot{
		Quotes:    make(map[string]map[int]economy.Quote),
		Timestamp: time.Unix(takenAt, 0).UTC(),
	}
	for rows.Next() {
		var (
			hrid string
			lvl  int
			q    economy.Quote
		)
		if err := rows.Scan(&hrid, &lvl, &q.Ask, &q.Bid); err != nil {
			return market.Snapshot{}, false, fmt.Errorf("scanning quote: %w", err)
		}
		byLevel, ok := snap.Quotes[hrid]
		if !ok {
			byLevel = make(map[int]economy.Quote)
			snap.Quotes[hrid] = byLevel
		}
		byLevel[lvl] = q
	}
	if err := rows.Err(); err != nil {
		return market.Snapshot{}, false, fmt.Errorf("iterating quotes: %w", err)
	}
	return snap, true, nil
}

// SnapshotCount returns how many snapshots are stored.
func (s *MarketStore) SnapshotCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM market_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting snapshots: %w", err)
	}
	return n, nil
}

// Prune keeps the newest keep snapshots and deletes the rest along with
// their quotes.
func (s *MarketStore) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM market_snapshots
		WHERE id NOT IN (
			SELECT id FROM market_snapshots
			ORDER BY taken_at DESC, id DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return result.RowsAffected()
}
