package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the registry whenever the configuration file at path
// changes, until ctx is done. The parent directory is watched rather than
// the file itself so atomic rename-over saves (the common editor and
// config-management behavior) are picked up.
//
// Invalid intermediate states of the file are logged and skipped; the last
// good configuration stays in effect.
func (r *Registry) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("registry: create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("registry: watch %s: %w", path, err)
	}

	// The watcher's lifetime is bounded by both the caller's ctx and the
	// registry: Close cancels it so no server is launched after shutdown
	// begins.
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		_ = w.Close()
		return fmt.Errorf("registry: closed")
	}
	r.watchCancels = append(r.watchCancels, cancel)
	r.mu.Unlock()

	go r.watchLoop(ctx, w, path)
	return nil
}

func (r *Registry) watchLoop(ctx context.Context, w *fsnotify.Watcher, path string) {
	defer w.Close()
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Rename) {
				continue
			}
			// An event can win the select race against cancellation.
			if ctx.Err() != nil {
				return
			}
			cfg, err := LoadConfig(path)
			if err != nil {
				r.log.WarnContext(ctx, "registry.watch.config_invalid", slog.String("error", err.Error()))
				continue
			}
			if err := r.Reload(ctx, cfg); err != nil {
				r.log.WarnContext(ctx, "registry.watch.reload_failed", slog.String("error", err.Error()))
				continue
			}
			r.log.DebugContext(ctx, "registry.watch.reloaded", slog.String("path", path))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			r.log.WarnContext(ctx, "registry.watch.error", slog.String("error", err.Error()))
		}
	}
}
