// internal/app/system/workers/stagingcleanup.go
package workers

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LiveFunc reports whether a draft id is still in use.
type LiveFunc func(draftID string) bool

// StagingCleanup removes staging directories that no live draft owns, such
// as those left behind by a restart. Directories younger than minAge are
// kept so a draft being created is never raced.
type StagingCleanup struct {
	root     string
	live     LiveFunc
	log      *zap.Logger
	interval time.Duration
	minAge   time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewStagingCleanup creates the worker. interval is how often it scans;
// minAge is normally the draft TTL.
func NewStagingCleanup(root string, live LiveFunc, logger *zap.Logger, interval, minAge time.Duration) *StagingCleanup {
	return &StagingCleanup{
		root:     root,
		live:     live,
		log:      logger,
		interval: interval,
		minAge:   minAge,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval.
func (w *StagingCleanup) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("staging cleanup worker started",
		zap.String("root", w.root),
		zap.Duration("interval", w.interval),
		zap.Duration("min_age", w.minAge))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *StagingCleanup) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("staging cleanup worker stopped")
}

func (w *StagingCleanup) run() {
	defer w.wg.Done()
	w.Sweep()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep removes orphaned directories and returns how many it removed.
func (w *StagingCleanup) Sweep() int {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		w.log.Error("read staging root", zap.String("root", w.root), zap.Error(err))
		return 0
	}

	cutoff := w.now().Add(-w.minAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || w.live(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.root, e.Name())); err != nil {
			w.log.Warn("remove orphaned staging dir", zap.String("draft_id", e.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		w.log.Info("removed orphaned staging dirs", zap.Int("count", removed))
	}
	return removed
}
