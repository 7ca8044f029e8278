package market

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// SnapshotSaver persists loaded snapshots.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	URL         string
	Interval    time.Duration
	HTTPTimeout time.Duration
}

// Fetcher refreshes a Book from an HTTP endpoint serving the marketplace
// document.
type Fetcher struct {
	cfg        FetcherConfig
	book       *Book
	saver      SnapshotSaver
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a fetcher. saver may be nil.
func NewFetcher(cfg FetcherConfig, book *Book, saver SnapshotSaver, logger *slog.Logger) *Fetcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		cfg:   cfg,
		book:  book,
		saver: saver,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		logger: logger,
	}
}

// FetchOnce downloads, loads and saves one snapshot.
func (f *Fetcher) FetchOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("building market request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching market data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching market data: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("reading market data: %w", err)
	}

	snap, err := ParseMarketJSON(body)
	if err != nil {
		return err
	}
	if snap.Timestamp.Unix() <= 0 {
		snap.Timestamp = time.Now().UTC()
	}
	f.book.Load(snap)

	if f.saver != nil {
		if err := f.saver.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("saving market snapshot: %w", err)
		}
	}
	return nil
}

// Run fetches immediately and then on every interval until ctx is done.
// Failures are logged and retried on the next tick.
func (f *Fetcher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := f.FetchOnce(ctx); err != nil && ctx.Err() == nil {
			f.logger.Warn("market refresh failed", "url", f.cfg.URL, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
