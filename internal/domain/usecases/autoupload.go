// Package usecases - autoupload.go pushes PDFs dropped into a folder through an UploadFlow.
package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/apierr"
	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// DefaultQuietPeriod is how long a file must stop changing before upload.
const DefaultQuietPeriod = 500 * time.Millisecond

// AutoUploader watches a directory and uploads each new or changed PDF.
// Uploads run one at a time through a single UploadFlow.
type AutoUploader struct {
	watcher ports.FileWatcher
	flow    *UploadFlow
	logger  *slog.Logger
	quiet   time.Duration

	// OnSettled, if set, receives the flow snapshot after every attempt.
	OnSettled func(path string, attempt entities.UploadAttempt)

	// Ledger, if set, persists uploaded versions across runs.
	Ledger ports.UploadLedger

	mu       sync.Mutex
	uploaded map[string]entities.FileVersion
	stats    AutoUploadStats
}

// AutoUploadStats counts attempts since Run started.
type AutoUploadStats struct {
	Uploaded int
	Failed   int
	Skipped  int
}

// NewAutoUploader creates an AutoUploader. A non-positive quiet period uses DefaultQuietPeriod.
func NewAutoUploader(watcher ports.FileWatcher, flow *UploadFlow, quiet time.Duration, logger *slog.Logger) *AutoUploader {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoUploader{
		watcher:  watcher,
		flow:     flow,
		logger:   logger,
		quiet:    quiet,
		uploaded: make(map[string]entities.FileVersion),
	}
}

// Stats returns the counters.
func (u *AutoUploader) Stats() AutoUploadStats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stats
}

// Run blocks until ctx is done or the watcher closes its event channel.
func (u *AutoUploader) Run(ctx context.Context, dir string) error {
	events, err := u.watcher.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	u.logger.Info("watching for documents", "dir", dir)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(u.quiet / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Operation == ports.FileDeleted {
				delete(pending, ev.Path)
				continue
			}
			pending[ev.Path] = time.Now()
		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < u.quiet {
					continue
				}
				delete(pending, path)
				u.process(ctx, path)
			}
		}
	}
}

// process uploads one settled file unless its content was already sent.
func (u *AutoUploader) process(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		u.logger.Debug("file vanished before upload", "path", path)
		return
	}
	version := entities.FileVersion{Path: path, Size: info.Size(), ModTime: info.ModTime()}
	if u.alreadyUploaded(ctx, version) {
		return
	}

	if err := u.flow.SelectPath(ctx, path); err != nil {
		u.count(func(s *AutoUploadStats) { s.Skipped++ })
		if apierr.Is(err, apierr.Validation) {
			u.logger.Info("skipping file", "path", path, "reason", apierr.Message(err))
		} else {
			u.logger.Warn("cannot inspect file", "path", path, "error", err)
		}
		return
	}

	res, err := u.flow.Upload(ctx)
	if err != nil {
		u.count(func(s *AutoUploadStats) { s.Failed++ })
	} else {
		u.mu.Lock()
		u.uploaded[path] = version
		u.stats.Uploaded++
		u.mu.Unlock()
		if u.Ledger != nil {
			if err := u.Ledger.Record(ctx, version, res); err != nil {
				u.logger.Warn("recording upload", "path", path, "error", err)
			}
		}
	}

	if u.OnSettled != nil {
		u.OnSettled(path, u.flow.Snapshot())
	}
}

func (u *AutoUploader) alreadyUploaded(ctx context.Context, v entities.FileVersion) bool {
	u.mu.Lock()
	prev, seen := u.uploaded[v.Path]
	u.mu.Unlock()
	if seen && prev.Same(v) {
		return true
	}
	if u.Ledger == nil {
		return false
	}
	done, err := u.Ledger.Uploaded(ctx, v)
	if err != nil {
		u.logger.Warn("reading upload ledger", "path", v.Path, "error", err)
		return false
	}
	if done {
		u.logger.Debug("already uploaded in an earlier run", "path", v.Path)
	}
	return done
}

func (u *AutoUploader) count(fn func(*AutoUploadStats)) {
	u.mu.Lock()
	fn(&u.stats)
	u.mu.Unlock()
}
