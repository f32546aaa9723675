package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 300 * time.Millisecond

// Watcher reloads think preferences when the preference file changes on
// disk. Only the think section is applied live; bridge, archive and status
// settings need a restart.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	path     string
	onChange func(ThinkPrefs)
	logger   *zap.Logger

	pending   bool
	pendingAt time.Time

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher prepares a watcher for the preference file at path. It watches
// the containing directory rather than the file itself: editors that save by
// rename would otherwise drop the watch after the first write.
func NewWatcher(path string, onChange func(ThinkPrefs), logger *zap.Logger) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("config watcher: onChange callback is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config watcher: resolve %s: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		path:     abs,
		onChange: onChange,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop exits when ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("config watcher: watch %s: %w", dir, err)
	}
	w.logger.Info("watching preference file", zap.String("path", w.path))

	go w.run(ctx)
	return nil
}

// Stop ends the watch and waits for the event loop to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("preference watcher close", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("preference watcher error", zap.Error(err))
		case <-tick.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	w.mu.Lock()
	w.pending = true
	w.pendingAt = time.Now()
	w.mu.Unlock()
}

// flush fires the callback once a burst of events has settled. Editors tend
// to emit several writes per save; the debounce collapses them into one
// reload.
func (w *Watcher) flush() {
	w.mu.Lock()
	if !w.pending || time.Since(w.pendingAt) < watchDebounce {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	prefs, err := Load(w.path)
	if err != nil {
		w.logger.Warn("preference reload failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.logger.Info("think preferences reloaded",
		zap.Int("analyse_ms", prefs.Think.AnalyseMS),
		zap.Int("engine_move_ms", prefs.Think.EngineMoveMS))
	w.onChange(prefs.Think)
}
