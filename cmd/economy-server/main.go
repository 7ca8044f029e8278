// Idle game economy MCP server
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rsned/idle-economy-server/internal/economy/consumption"
	"github.com/rsned/idle-economy-server/internal/economy/db"
	"github.com/rsned/idle-economy-server/internal/economy/engine"
	"github.com/rsned/idle-economy-server/internal/economy/market"
	"github.com/rsned/idle-economy-server/internal/economy/mcp"
	"github.com/rsned/idle-economy-server/internal/economy/state"
	"github.com/rsned/idle-economy-server/internal/economy/sync"
	"github.com/rsned/idle-economy-server/internal/economy/tuning"
	"github.com/rsned/idle-economy-server/internal/platform/config"
	"github.com/rsned/idle-economy-server/internal/transport/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Parse flags; environment supplies the defaults
	dbPath := flag.String("db", cfg.DBPath, "Path to SQLite database")
	feedURL := flag.String("feed", cfg.FeedURL, "Websocket URL of the live game feed")
	marketURL := flag.String("market-url", cfg.MarketURL, "HTTP URL of the marketplace document")
	tuningPath := flag.String("tuning", cfg.TuningPath, "Path to economy tuning YAML")
	journalDir := flag.String("journal", cfg.JournalDir, "Directory for the inbound frame journal")
	importGameData := flag.String("import-game-data", "", "Import static game data (init_client_data) from JSON file")
	importMarket := flag.String("import-market", "", "Import market data from JSON file")
	replayDir := flag.String("replay", "", "Replay a frame journal directory before serving")
	verbose := flag.Bool("verbose", cfg.Verbose, "Enable verbose logging")
	flag.Parse()

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down...")
		cancel()
	}()

	opts := options{
		dbPath:         *dbPath,
		feedURL:        *feedURL,
		marketURL:      *marketURL,
		tuningPath:     *tuningPath,
		journalDir:     *journalDir,
		importGameData: *importGameData,
		importMarket:   *importMarket,
		replayDir:      *replayDir,
	}
	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("server failed", "error", err)
		cancel()
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr, "server stopped")
}

type options struct {
	dbPath         string
	feedURL        string
	marketURL      string
	tuningPath     string
	journalDir     string
	importGameData string
	importMarket   string
	replayDir      string
}

// run returns instead of exiting so deferred closes flush the database,
// the combat tracker and the journal.
func run(ctx context.Context, cfg config.Config, opts options, logger *slog.Logger) error {
	tun, err := tuning.Load(opts.tuningPath)
	if err != nil {
		return fmt.Errorf("loading tuning %s: %w", opts.tuningPath, err)
	}

	// Open database
	database, err := db.OpenAndInit(ctx, opts.dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = database.Close() }()

	syncer := sync.NewSyncer(database, logger)
	store := state.New(logger)
	book := market.NewBook(logger)
	book.Attach(store)

	// Handle import commands
	if opts.importGameData != "" || opts.importMarket != "" {
		if opts.importGameData != "" {
			logger.Info("importing game data", "file", opts.importGameData)
			if _, err := syncer.ImportGameDataFromFile(ctx, opts.importGameData); err != nil {
				return fmt.Errorf("importing game data: %w", err)
			}
			logger.Info("game data imported successfully")
		}

		if opts.importMarket != "" {
			logger.Info("importing market data", "file", opts.importMarket)
			if err := syncer.ImportMarketDataFromFile(ctx, opts.importMarket, book); err != nil {
				return fmt.Errorf("importing market data: %w", err)
			}
			logger.Info("market data imported successfully")
		}

		// If only doing imports, exit
		if flag.NArg() == 0 && opts.feedURL == "" && opts.replayDir == "" {
			return nil
		}
	}

	// Warm state from the database
	if _, err := syncer.LoadGameData(ctx, store); err != nil {
		logger.Warn("stored game data unusable", "error", err)
	}
	if !book.IsReady() {
		if _, err := syncer.RestoreMarket(ctx, book); err != nil {
			logger.Warn("stored market snapshot unusable", "error", err)
		}
	}
	if n, err := syncer.PruneMarket(ctx, cfg.MarketKeep); err != nil {
		logger.Warn("pruning market snapshots failed", "error", err)
	} else if n > 0 {
		logger.Debug("pruned market snapshots", "removed", n)
	}

	// Combat consumption tracking
	est := consumption.NewEstimator(consumption.StoreCategory(store))
	tracker := consumption.NewTracker(consumption.TrackerConfig{}, store, est,
		market.NewPricer(book, tun.Mode()), db.NewKVStore(database), logger)
	if _, err := tracker.Restore(ctx); err != nil {
		logger.Warn("restoring combat summary failed", "error", err)
	}
	tracker.Start()
	defer func() { _ = tracker.Close() }()

	if opts.replayDir != "" {
		stats, err := sync.ReplayDir(ctx, opts.replayDir, store, logger)
		if err != nil {
			return fmt.Errorf("replaying %s: %w", opts.replayDir, err)
		}
		logger.Info("journal replayed", "files", stats.Files, "applied", stats.Applied, "skipped", stats.Skipped, "state", store.Phase())
	}

	if opts.marketURL != "" {
		fetcher := market.NewFetcher(market.FetcherConfig{
			URL:      opts.marketURL,
			Interval: cfg.MarketRefresh,
		}, book, syncer, logger)
		go fetcher.Run(ctx)
	}

	if opts.feedURL != "" {
		var sink sync.Applier = store
		if opts.journalDir != "" {
			journal := sync.NewJournal(opts.journalDir)
			defer func() { _ = journal.Close() }()
			sink = sync.Tee(store, journal, logger)
		}
		client := ws.NewClient(ws.Config{URL: opts.feedURL}, logger)
		go func() { _ = client.Run(ctx, sink) }()
	}

	// Create engine and server
	eng, err := engine.New(engine.Deps{
		Store:   store,
		Book:    book,
		Tracker: tracker,
		Tuning:  tun,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	server := mcp.NewServer(eng, logger)

	// Run MCP server
	logger.Info("starting MCP server", "db", opts.dbPath, "pricing", tun.Mode())
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}
