package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Sweep removes staged artifacts last written more than maxAge before now
// and returns how many were removed. A non-positive maxAge keeps everything.
func (s *Store) Sweep(now time.Time, maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		slog.Error("staging retention: failed to list directory", "dir", s.dir, "error", err)
		return 0
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove staged file", "path", p, "error", err)
			continue
		}
		removed++
	}
	return removed
}

// StartCleanupTicker runs a background goroutine that periodically removes
// staged artifacts older than maxAge. If maxAge is 0 no cleanup is performed.
// The goroutine stops when ctx is cancelled.
func (s *Store) StartCleanupTicker(ctx context.Context, maxAge, interval time.Duration) {
	if maxAge <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if removed := s.Sweep(now, maxAge); removed > 0 {
					slog.Info("staging retention cleanup", "deleted", removed, "max_age", maxAge)
				}
			}
		}
	}()
}
