package compliance

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-compliance/internal/logging"
)

// DefaultReloadDebounce groups the burst of events an editor emits on save.
const DefaultReloadDebounce = 250 * time.Millisecond

// Reloadable is a table backed by a file.
type Reloadable interface {
	Reload() error
	Path() string
}

// WatchTarget names a table for logs and metrics.
type WatchTarget struct {
	Name  string
	Table Reloadable
}

// Watcher reloads tables when their backing file changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	targets  map[string]WatchTarget
	debounce time.Duration
	logger   *zap.Logger
	metrics  *Metrics

	mu     sync.Mutex
	timers map[string]*time.Timer
	stop   chan struct{}
	done   chan struct{}
	// onReload is called after every reload attempt; tests hook into it.
	onReload func(name string, err error)
}

// NewWatcher prepares a watcher. Targets without a backing file are ignored.
func NewWatcher(debounce time.Duration, logger *zap.Logger, metrics *Metrics, targets ...WatchTarget) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w := &Watcher{
		watcher:  fw,
		targets:  make(map[string]WatchTarget),
		debounce: debounce,
		logger:   logging.OrNop(logger).Named("watcher"),
		metrics:  metrics,
		timers:   make(map[string]*time.Timer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, t := range targets {
		if t.Table == nil || t.Table.Path() == "" {
			continue
		}
		abs, err := filepath.Abs(t.Table.Path())
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("resolve %s: %w", t.Table.Path(), err)
		}
		w.targets[abs] = t
	}
	return w, nil
}

// Start watches the directories of all targets, since editors often replace files by rename.
func (w *Watcher) Start(ctx context.Context) error {
	dirs := make(map[string]struct{})
	for path := range w.targets {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	go w.loop(ctx)
	return nil
}

// Stop ends the watch loop and cancels pending reloads.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
	<-w.done
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if t, ok := w.targets[abs]; ok {
				w.schedule(abs, t)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule(path string, t WatchTarget) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.reload(t) })
}

func (w *Watcher) reload(t WatchTarget) {
	err := t.Table.Reload()
	w.metrics.observeReload(t.Name, err)
	if err != nil {
		// snapshot lama tetap dipakai
		w.logger.Error("reload failed, keeping previous table",
			zap.String("table", t.Name), zap.String("path", t.Table.Path()), zap.Error(err))
	} else {
		w.logger.Info("table reloaded", zap.String("table", t.Name), zap.String("path", t.Table.Path()))
	}
	if w.onReload != nil {
		w.onReload(t.Name, err)
	}
}
