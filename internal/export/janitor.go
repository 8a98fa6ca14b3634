package export

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/wms-askbot/internal/metrics"
	"github.com/jonboulle/clockwork"
)

// Janitor deletes result artifacts older than a retention window.
type Janitor struct {
	dir       string
	retention time.Duration
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewJanitor creates a janitor for dir. A nil clock uses the real clock.
func NewJanitor(dir string, retention, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Janitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		dir:       dir,
		retention: retention,
		interval:  interval,
		clock:     clock,
		logger:    logger,
	}
}

// Start runs Sweep every interval until ctx is done.
func (j *Janitor) Start(ctx context.Context) {
	ticker := j.clock.NewTicker(j.interval)
	go func() {
		defer ticker.Stop()
		j.logger.Info("Artifact janitor started", "interval", j.interval, "retention", j.retention)

		for {
			select {
			case <-ticker.Chan():
				j.Sweep()
			case <-ctx.Done():
				j.logger.Info("Artifact janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep removes expired artifacts and returns how many were deleted.
func (j *Janitor) Sweep() int {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		j.logger.Error("Artifact janitor failed to read output directory", "dir", j.dir, "error", err)
		return 0
	}

	cutoff := j.clock.Now().Add(-j.retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), ArtifactPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(j.dir, e.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			j.logger.Warn("Artifact janitor failed to remove file", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.ArtifactsSweptTotal.Add(float64(removed))
		j.logger.Info("Artifact janitor cleanup completed", "removed", removed)
	}
	return removed
}
