package sync

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	gosync "sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/rsned/idle-economy-server/internal/economy/protocol"
)

const (
	journalPrefix = "frames"
	journalSuffix = ".jsonl.zst"
	hourLayout    = "2006-01-02-15"
)

// Journal appends inbound frames to hourly zstd-compressed JSONL files.
type Journal struct {
	dir string
	now func() time.Time

	mu      gosync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewJournal creates a journal writing under dir.
func NewJournal(dir string) *Journal {
	return &Journal{dir: dir, now: time.Now}
}

// Write appends one frame as a single line. Each write ends a zstd block, so
// frames already written survive a crash before Close.
func (j *Journal) Write(raw []byte) error {
	var line bytes.Buffer
	if err := json.Compact(&line, raw); err != nil {
		return fmt.Errorf("compacting frame: %w", err)
	}
	line.WriteByte('\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	hour := j.now().UTC().Format(hourLayout)
	if hour != j.curHour {
		if err := j.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := j.w.Write(line.Bytes()); err != nil {
		return fmt.Errorf("writing journal: %w", err)
	}
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("writing journal: %w", err)
	}
	if err := j.enc.Flush(); err != nil {
		return fmt.Errorf("flushing journal: %w", err)
	}
	return nil
}

// Close flushes and closes the current file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

func (j *Journal) rotateLocked(hour string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("creating journal dir: %w", err)
	}
	path, err := j.freePath(hour)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("creating encoder: %w", err)
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 128*1024)
	j.curHour = hour
	return nil
}

func (j *Journal) closeLocked() error {
	var err error
	if j.w != nil {
		_ = j.w.Flush()
	}
	if j.enc != nil {
		err = j.enc.Close()
		j.enc = nil
	}
	if j.f != nil {
		_ = j.f.Close()
		j.f = nil
	}
	j.w = nil
	j.curHour = ""
	return err
}

func (j *Journal) pathForHour(hour string) string {
	return filepath.Join(j.dir, journalPrefix+"-"+hour+journalSuffix)
}

// freePath returns the first empty or missing file for hour. A file left by
// an earlier process may end mid-frame, so it is never appended to; later
// parts are suffixed _01, _02 and still sort after it.
func (j *Journal) freePath(hour string) (string, error) {
	path := j.pathForHour(hour)
	for n := 1; ; n++ {
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking journal: %w", err)
		}
		path = j.pathForHour(fmt.Sprintf("%s_%02d", hour, n))
	}
}

// JournalFiles lists the journal files under dir, oldest first.
func JournalFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing journal: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, journalPrefix+"-") || !strings.HasSuffix(name, journalSuffix) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	// Hour stamps sort lexically
	sort.Strings(out)
	return out, nil
}

// ReplayStats counts what a replay did.
type ReplayStats struct {
	Files   int `json:"files"`
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// ReplayFile feeds every frame of one journal file to dst in order. Frames
// dst rejects as invalid or unknown are counted and skipped.
func ReplayFile(ctx context.Context, path string, dst Applier, logger *slog.Logger) (ReplayStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	stats := ReplayStats{Files: 1}

	f, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return stats, fmt.Errorf("creating decoder: %w", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := dst.Apply(line); err != nil {
			stats.Skipped++
			if errors.Is(err, protocol.ErrUnknownType) {
				continue
			}
			logger.Warn("skipping journal frame", "file", filepath.Base(path), "error", err)
			continue
		}
		stats.Applied++
	}
	if err := sc.Err(); err != nil {
		// A journal that was never closed ends without a frame trailer.
		if errors.Is(err, io.ErrUnexpectedEOF) {
			logger.Info("journal ends mid-frame", "file", filepath.Base(path), "applied", stats.Applied)
			return stats, nil
		}
		return stats, fmt.Errorf("%s: reading journal: %w", filepath.Base(path), err)
	}
	return stats, nil
}

// ReplayDir replays every journal file under dir, oldest first.
func ReplayDir(ctx context.Context, dir string, dst Applier, logger *slog.Logger) (ReplayStats, error) {
	files, err := JournalFiles(dir)
	if err != nil {
		return ReplayStats{}, err
	}
	var total ReplayStats
	for _, path := range files {
		st, err := ReplayFile(ctx, path, dst, logger)
		total.Files += st.Files
		total.Applied += st.Applied
		total.Skipped += st.Skipped
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(raw []byte) error

// Apply calls f(raw).
func (f ApplierFunc) Apply(raw []byte) error { return f(raw) }

// Tee journals every frame before handing it to dst. A journal failure is
// logged and does not stop the frame.
func Tee(dst Applier, j *Journal, logger *slog.Logger) Applier {
	if j == nil {
		return dst
	}
	if logger == nil {
		logger = slog.Default()
	}
	return ApplierFunc(func(raw []byte) error {
		if err := j.Write(raw); err != nil {
			logger.Warn("journal write failed", "error", err)
		}
		return dst.Apply(raw)
	})
}
