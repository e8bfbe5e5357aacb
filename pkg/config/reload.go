package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-pkgz/lgr"
)

// reloadDelay collapses bursts of writes from editors into a single reload.
var reloadDelay = 300 * time.Millisecond

// Reloader watches the global and local config files and reloads the merged config
// when one of them changes. a config that fails to load or validate is logged and skipped,
// the previous one stays in effect.
type Reloader struct {
	configDir string
	localDir  string
	watcher   *fsnotify.Watcher
	log       lgr.L
}

// NewReloader starts watching the directories cfg was loaded from.
// directories are watched rather than files so atomic saves (write + rename) are seen.
func NewReloader(cfg *Config, log lgr.L) (*Reloader, error) {
	if log == nil {
		log = lgr.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	for _, dir := range []string{cfg.configDir, cfg.localDir} {
		if dir == "" {
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return &Reloader{configDir: cfg.configDir, localDir: cfg.localDir, watcher: w, log: log}, nil
}

// Run calls onReload with every successfully reloaded config until ctx is done.
func (r *Reloader) Run(ctx context.Context, onReload func(*Config)) error {
	defer r.watcher.Close()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != "config" || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			pending = time.After(reloadDelay)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Logf("[WARN] config watcher: %v", err)
		case <-pending:
			pending = nil
			cfg, err := loadFrom(r.configDir, r.localDir)
			if err != nil {
				r.log.Logf("[WARN] config reload skipped: %v", err)
				continue
			}
			r.log.Logf("[INFO] config reloaded")
			onReload(cfg)
		}
	}
}
