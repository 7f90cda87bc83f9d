package classify

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/JaimeStill/triage/pkg/lifecycle"
)

// Watch reloads the pattern pack at path into h whenever the file is written
// or replaced, until lc shuts down. A pack that fails to compile is logged
// and the previous pack stays active.
func Watch(lc *lifecycle.Coordinator, h *Heuristic, path string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Editors replace files by rename, so watch the directory.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	logger = logger.With("system", "pattern-watch", "path", path)
	target := filepath.Clean(path)

	lc.Go(func(ctx context.Context) {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				logger.Info("pattern watch stopped")
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}

				pack, err := LoadPack(path)
				if err != nil {
					logger.Error("pattern pack reload failed", "error", err)
					continue
				}
				h.SetPack(pack)
				logger.Info("pattern pack reloaded", "rules", pack.Len())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("pattern watch error", "error", err)
			}
		}
	})

	return nil
}
