package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"manifold/internal/logging"
	"manifold/internal/services"
)

const (
	dropSuffix    = ".ndjson"
	claimedSuffix = ".done"

	// rescanInterval bounds how stale the directory view can get on
	// filesystems where watch events are lossy.
	rescanInterval = 5 * time.Second
)

// DropDir ingests telemetry from newline-delimited JSON files dropped into a
// directory. Producers write the file elsewhere and rename it into the
// directory with the .ndjson suffix, so the handoff is atomic. DropDir claims
// a file by renaming it with a .done suffix before parsing; each file is
// consumed at most once even when a watch event and a rescan overlap.
type DropDir struct {
	logger *slog.Logger
	dir    string

	mu      sync.Mutex
	pending []Record

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewDropDir watches dir and immediately consumes any files already present.
// Close must be called to release the watcher.
func NewDropDir(dir string, logger *slog.Logger) (*DropDir, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, services.Wrap(services.ErrIngestion, "ingest", "watch", "ingest directory not configured", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrIngestion, "ingest", "watch", "create ingest directory", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, services.Wrap(services.ErrIngestion, "ingest", "watch", "create watcher", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, services.Wrap(services.ErrIngestion, "ingest", "watch", "watch ingest directory", err)
	}

	d := &DropDir{
		logger:  logging.NewComponentLogger(logger, "ingest"),
		dir:     dir,
		watcher: watcher,
		done:    make(chan struct{}),
	}
	d.scan()

	d.wg.Add(1)
	go d.run()
	return d, nil
}

// Poll drains up to limit parsed records in arrival order.
func (d *DropDir) Poll(_ context.Context, limit int) ([]Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return nil, nil
	}
	n := len(d.pending)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, n)
	copy(out, d.pending[:n])
	d.pending = append(d.pending[:0], d.pending[n:]...)
	return out, nil
}

// Pending reports how many parsed records await polling.
func (d *DropDir) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close stops the watcher. Records already parsed stay pollable.
func (d *DropDir) Close() error {
	var err error
	d.once.Do(func() {
		close(d.done)
		err = d.watcher.Close()
		d.wg.Wait()
	})
	return err
}

func (d *DropDir) run() {
	defer d.wg.Done()
	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
				if strings.HasSuffix(event.Name, dropSuffix) {
					d.consume(event.Name)
				}
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("watch error", logging.Error(err))
		case <-ticker.C:
			d.scan()
		}
	}
}

// scan consumes every unclaimed drop file currently in the directory.
func (d *DropDir) scan() {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		d.logger.Warn("scan ingest directory", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), dropSuffix) {
			continue
		}
		d.consume(filepath.Join(d.dir, entry.Name()))
	}
}

// consume claims the file by rename, then parses it. A failed rename means
// another pass already claimed it.
func (d *DropDir) consume(path string) {
	claimed := path + claimedSuffix
	if err := os.Rename(path, claimed); err != nil {
		if !os.IsNotExist(err) {
			d.logger.Warn("claim drop file", logging.String("file", path), logging.Error(err))
		}
		return
	}

	records, skipped, err := parseDropFile(claimed)
	if err != nil {
		d.logger.Warn("read drop file", logging.String("file", claimed), logging.Error(err))
		return
	}
	if skipped > 0 {
		d.logger.Warn("skipped malformed telemetry lines",
			logging.String("file", filepath.Base(path)),
			logging.Int("skipped", skipped))
	}
	if len(records) == 0 {
		return
	}

	d.mu.Lock()
	d.pending = append(d.pending, records...)
	depth := len(d.pending)
	d.mu.Unlock()
	d.logger.Debug("telemetry ingested",
		logging.String("file", filepath.Base(path)),
		logging.Int("records", len(records)),
		logging.Int("pending", depth))
}

func parseDropFile(path string) ([]Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	source := strings.TrimSuffix(filepath.Base(path), claimedSuffix)
	var records []Record
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped++
			continue
		}
		if strings.TrimSpace(rec.EntityID) == "" {
			skipped++
			continue
		}
		if rec.Timestamp.IsZero() {
			rec.Timestamp = time.Now().UTC()
		}
		rec.Source = source
		records = append(records, rec)
	}
	return records, skipped, scanner.Err()
}
