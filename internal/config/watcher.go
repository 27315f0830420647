package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/0xADE/ade-launchd/internal/logx"
)

// Watcher reloads the settings file when it changes.
type Watcher struct {
	cfg      *Config
	watcher  *fsnotify.Watcher
	logger   *logx.Logger
	onChange func(Snapshot)
}

// NewWatcher watches the directory of the settings file. onChange is called
// with the new snapshot after every successful reload.
func NewWatcher(cfg *Config, logger *logx.Logger, onChange func(Snapshot)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(cfg.SettingsPath())); err != nil {
		watcher.Close()
		return nil, err
	}

	return &Watcher{cfg: cfg, watcher: watcher, logger: logger, onChange: onChange}, nil
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	settingsPath := filepath.Clean(w.cfg.SettingsPath())
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != settingsPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := w.cfg.Reload(); err != nil {
				w.logger.Errorf("Error reloading settings: %v", err)
				continue
			}
			w.logger.Infof("Settings reloaded from %s", settingsPath)
			if w.onChange != nil {
				w.onChange(w.cfg.Snapshot())
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("Settings watcher error: %v", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
