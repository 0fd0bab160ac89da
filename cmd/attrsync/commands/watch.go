package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/attrsync/internal/logger"
)

// watchDebounce coalesces the burst of events an editor emits on save.
const watchDebounce = 250 * time.Millisecond

// watchFile calls onChange after path is written, created or renamed into
// place. The parent directory is watched so atomic replacements are seen.
// It returns once ctx is done.
func watchFile(ctx context.Context, path string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			fire = time.After(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "path", path, logger.Err(err))
		case <-fire:
			fire = nil
			onChange()
		}
	}
}
