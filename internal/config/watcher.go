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

// Watcher watches a configuration file for changes and invokes a
// reload callback after a debounce period.
type Watcher struct {
	logger  *zap.Logger
	path    string
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	running  bool
	onChange func(*Config)

	ctx      context.Context
	cancel   context.CancelFunc
	debounce time.Duration
	timer    *time.Timer
}

// NewWatcher creates a new configuration watcher
func NewWatcher(logger *zap.Logger, configPath string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		logger:   logger,
		path:     configPath,
		watcher:  fw,
		ctx:      ctx,
		cancel:   cancel,
		debounce: time.Second,
	}, nil
}

// Start begins watching the configuration file
func (w *Watcher) Start(onChange func(*Config)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	w.onChange = onChange

	if err := w.watcher.Add(w.path); err != nil {
		return fmt.Errorf("failed to watch file %s: %w", w.path, err)
	}

	// Watch the directory too: editors often replace the file on save.
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("Failed to watch directory",
			zap.String("dir", dir),
			zap.Error(err),
		)
	}

	w.running = true
	go w.loop()

	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.cancel()
	w.running = false
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Configuration watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("Failed to reload configuration",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}

	w.logger.Info("Configuration reloaded", zap.String("path", w.path))

	w.mu.Lock()
	cb := w.onChange
	w.mu.Unlock()

	if cb != nil {
		cb(cfg)
	}
}
