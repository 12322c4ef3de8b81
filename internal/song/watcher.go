package song

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Logger is the logging interface used by the watcher.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Watch invalidates the cached listing whenever something changes under
// the songs directory, and calls onChange (if non-nil) after each
// invalidation. New song directories are watched as they appear.
//
// Watch blocks until ctx is cancelled. It returns an error only if the
// watcher cannot be set up.
func (l *Library) Watch(ctx context.Context, logger Logger, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating library watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(l.dir); err != nil {
		return fmt.Errorf("watching %s: %w", l.dir, err)
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("reading songs directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && ValidateName(e.Name()) == nil {
			if err := w.Add(filepath.Join(l.dir, e.Name())); err != nil {
				logger.Warn("cannot watch song directory", "song", e.Name(), "error", err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create && filepath.Dir(event.Name) == filepath.Clean(l.dir) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if addErr := w.Add(event.Name); addErr != nil {
						logger.Warn("cannot watch new song directory", "path", event.Name, "error", addErr)
					}
				}
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			logger.Debug("song library changed", "path", event.Name, "op", event.Op.String())
			l.Invalidate()
			if onChange != nil {
				onChange()
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("song library watcher error", "error", werr)
		}
	}
}
