package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openfroyo/folio/pkg/telemetry"
)

// Watcher reloads a configuration file when it changes on disk.
type Watcher struct {
	path   string
	loader *Loader
	logger *telemetry.Logger
	delay  time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string, loader *Loader, logger *telemetry.Logger) *Watcher {
	if loader == nil {
		loader = NewLoader()
	}
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Watcher{
		path:   filepath.Clean(path),
		loader: loader,
		logger: logger.NewComponentLogger("config-watcher"),
		delay:  500 * time.Millisecond,
	}
}

// Watch starts watching in the background and calls onChange with every
// configuration that loads and validates. Invalid edits are logged and
// ignored. Watching stops when ctx is done or Stop is called.
func (w *Watcher) Watch(ctx context.Context, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	go w.processEvents(ctx, watcher, onChange)

	w.logger.WithField("path", w.path).Info("Started watching config file")
	return nil
}

// processEvents debounces file events and triggers reloads.
func (w *Watcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, onChange func(*Config)) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.logger.WithFields(map[string]interface{}{
				"file": event.Name,
				"op":   event.Op.String(),
			}).Debug("Config file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.delay, func() {
				w.reload(onChange)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("Watcher error")
		}
	}
}

func (w *Watcher) reload(onChange func(*Config)) {
	cfg, err := w.loader.Load(w.path)
	if err != nil {
		w.logger.WithError(err).Error("Failed to reload config, keeping previous")
		return
	}
	w.logger.Info("Config reloaded")
	onChange(cfg)
}

// Stop stops watching for file changes.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
