package integrations

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchCatalog reloads catalog whenever the file at path changes, until ctx
// is done. Invalid edits are logged and the previous catalog is kept.
func WatchCatalog(ctx context.Context, path string, catalog *Catalog, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// editors replace files on save, so the directory is watched
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	logger.Info("watching integration catalog", zap.String("path", target))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			providers, err := LoadCatalogFile(target)
			if err != nil {
				logger.Warn("integration catalog reload rejected", zap.String("path", target), zap.Error(err))
				continue
			}
			catalog.Replace(providers)
			logger.Info("integration catalog reloaded",
				zap.String("path", target),
				zap.Int("providers", len(providers)))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("integration catalog watcher error", zap.Error(err))
		}
	}
}
