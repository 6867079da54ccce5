package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pact-foundation/pactengine/internal/plan"
)

// defaultDebounce collapses the burst of events an editor save produces.
const defaultDebounce = 100 * time.Millisecond

// PlanWatcher reloads catalog entries when plan files in its directory
// change. Events are debounced per file.
type PlanWatcher struct {
	catalog  *plan.Catalog
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	// OnReload, when set, runs after every reload attempt.
	OnReload func(name string, err error)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewPlanWatcher watches the catalog's directory.
func NewPlanWatcher(catalog *plan.Catalog, logger *slog.Logger) (*PlanWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(catalog.Dir()); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", catalog.Dir(), err)
	}
	return &PlanWatcher{
		catalog:  catalog,
		watcher:  w,
		logger:   logger,
		debounce: defaultDebounce,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Watch processes file events until ctx is cancelled, then closes the
// underlying watcher.
func (pw *PlanWatcher) Watch(ctx context.Context) error {
	defer pw.close()

	pw.logger.Info("plan watcher started",
		"dir", pw.catalog.Dir(),
		"debounce_ms", pw.debounce.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			pw.logger.Info("plan watcher stopped")
			return nil

		case event, ok := <-pw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !shouldProcess(event) {
				continue
			}
			pw.logger.Debug("plan file event", "path", event.Name, "op", event.Op.String())
			pw.schedule(event.Name)

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			pw.logger.Error("plan watcher error", "error", err)
		}
	}
}

func shouldProcess(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	return plan.IsPlanFile(event.Name)
}

func (pw *PlanWatcher) schedule(path string) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if t, ok := pw.timers[path]; ok {
		t.Stop()
	}
	pw.timers[path] = time.AfterFunc(pw.debounce, func() {
		pw.mu.Lock()
		delete(pw.timers, path)
		pw.mu.Unlock()
		pw.reload(path)
	})
}

func (pw *PlanWatcher) reload(path string) {
	err := pw.catalog.Reload(path)
	if err != nil {
		pw.logger.Error("plan reload failed", "path", path, "error", err)
	}
	if pw.OnReload != nil {
		pw.OnReload(plan.PlanName(path), err)
	}
}

func (pw *PlanWatcher) close() {
	pw.mu.Lock()
	for path, t := range pw.timers {
		t.Stop()
		delete(pw.timers, path)
	}
	pw.mu.Unlock()
	pw.watcher.Close()
}
