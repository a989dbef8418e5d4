package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle coalesces the burst of events an editor or Save produces.
const settle = 200 * time.Millisecond

// Watch reloads path whenever it is written or replaced and passes the new
// configuration to onChange. It blocks until ctx is done. A file that fails
// to load or validate is logged and skipped; the previous configuration
// stays in effect.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	// Watch the directory: atomic saves replace the file's inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(path), err)
	}

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) == path && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				timer.Reset(settle)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config: watcher error", "err", err)
		case <-timer.C:
			cfg, err := Load(path)
			if err != nil {
				slog.Warn("config: reload failed, keeping previous config", "path", path, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", path)
			onChange(cfg)
		}
	}
}
