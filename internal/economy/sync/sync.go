// Package sync imports static game data and market snapshots into the
// database and keeps a replayable journal of inbound frames.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rsned/idle-economy-server/internal/economy/db"
	"github.com/rsned/idle-economy-server/internal/economy/gamedata"
	"github.com/rsned/idle-economy-server/internal/economy/market"
	"github.com/rsned/idle-economy-server/internal/economy/protocol"
)

// Applier consumes raw frames. *state.Store implements it.
type Applier interface {
	Apply(raw []byte) error
}

// UpdateApplier consumes typed payloads. *state.Store implements it.
type UpdateApplier interface {
	ApplyUpdate(msgType string, payload []byte) error
}

// Syncer moves data between files, the database and the live components.
type Syncer struct {
	db       *db.DB
	gameData *db.GameDataStore
	market   *db.MarketStore
	logger   *slog.Logger
}

// NewSyncer creates a new Syncer.
func NewSyncer(database *db.DB, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		db:       database,
		gameData: db.NewGameDataStore(database),
		market:   db.NewMarketStore(database),
		logger:   logger,
	}
}

// ImportGameDataFromFile imports an init_client_data document.
func (s *Syncer) ImportGameDataFromFile(ctx context.Context, path string) (*gamedata.Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return s.ImportGameData(ctx, data)
}

// ImportGameData validates and stores an init_client_data document.
func (s *Syncer) ImportGameData(ctx context.Context, data []byte) (*gamedata.Tables, error) {
	if err := protocol.Validate(protocol.TypeInitClientData, data); err != nil {
		return nil, err
	}
	tables, err := gamedata.Decode(data)
	if err != nil {
		return nil, err
	}

	if err := s.gameData.Save(ctx, tables.Version, data); err != nil {
		return nil, fmt.Errorf("storing game data: %w", err)
	}

	if err := s.db.RecordGameDataSync(ctx, db.GameDataSync{
		Version: tables.Version,
		Items:   tables.ItemCount(),
		Actions: tables.ActionCount(),
		At:      time.Now(),
	}); err != nil {
		return nil, err
	}

	s.logger.Info("imported game data",
		"version", tables.Version,
		"items", tables.ItemCount(),
		"actions", tables.ActionCount(),
	)
	return tables, nil
}

// LoadGameData feeds the stored game data into dst as an init_client_data
// update. It reports false when nothing was imported yet.
func (s *Syncer) LoadGameData(ctx context.Context, dst UpdateApplier) (bool, error) {
	payload, version, found, err := s.gameData.Load(ctx)
	if err != nil || !found {
		return false, err
	}
	if err := dst.ApplyUpdate(protocol.TypeInitClientData, payload); err != nil {
		return false, fmt.Errorf("applying stored game data: %w", err)
	}
	s.logger.Info("loaded stored game data", "version", version)
	return true, nil
}

// ImportMarketDataFromFile imports a marketplace document, stores it and
// loads it into book.
func (s *Syncer) ImportMarketDataFromFile(ctx context.Context, path string, book *market.Book) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	snap, err := market.ParseMarketJSON(data)
	if err != nil {
		return err
	}
	if snap.Timestamp.Unix() <= 0 {
		snap.Timestamp = time.Now().UTC()
	}
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	if book != nil {
		book.Load(snap)
	}
	return nil
}

// SaveSnapshot stores snap and records when it was taken.
func (s *Syncer) SaveSnapshot(ctx context.Context, snap market.Snapshot) error {
	if err := s.market.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("storing market snapshot: %w", err)
	}
	if err := s.db.RecordMarketSync(ctx, snap.Timestamp, time.Now()); err != nil {
		return err
	}
	s.logger.Debug("stored market snapshot", "items", len(snap.Quotes), "taken", snap.Timestamp)
	return nil
}

// RestoreMarket loads the newest stored snapshot into book. It reports
// false when the database holds none.
func (s *Syncer) RestoreMarket(ctx context.Context, book *market.Book) (bool, error) {
	snap, found, err := s.market.LoadLatest(ctx)
	if err != nil || !found {
		return false, err
	}
	book.Load(snap)
	s.logger.Info("restored market snapshot", "items", len(snap.Quotes), "taken", snap.Timestamp)
	return true, nil
}

// PruneMarket keeps the newest keep snapshots.
func (s *Syncer) PruneMarket(ctx context.Context, keep int) (int64, error) {
	return s.market.Prune(ctx, keep)
}

// Status returns the stored sync metadata keyed by the db.Meta* names.
func (s *Syncer) Status(ctx context.Context) (map[string]string, error) {
	return s.db.SyncStatus(ctx)
}
