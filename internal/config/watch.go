package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"storefront/internal/facet"
)

// WatchFacetSorting reloads the facet sort-order file whenever it changes and
// hands the parsed config to apply. The parent directory is watched so editors
// that replace the file on save are still seen. A file that fails to parse is
// logged and the previous config stays in effect. Watching stops when ctx is
// done.
func WatchFacetSorting(ctx context.Context, path string, logger *zap.Logger, apply func(map[string]facet.Sorting)) error {
	if path == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	target := filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("facet sort watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				sorting, err := LoadFacetSorting(target)
				if err != nil {
					logger.Warn("facet sort config reload failed", zap.String("path", target), zap.Error(err))
					continue
				}
				apply(sorting)
				logger.Info("facet sort config reloaded", zap.String("path", target), zap.Int("facets", len(sorting)))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("facet sort watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
