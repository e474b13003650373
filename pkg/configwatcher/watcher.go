package configwatcher

import (
	"context"
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/pkg/logger"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader receives each successfully reloaded configuration.
type Reloader func(cfg *config.Config)

// Watch reloads the config directory's config.yaml after writes settle for the
// debounce period and hands the result to reload. It blocks until ctx is done.
func Watch(ctx context.Context, configDir string, debounce time.Duration, reload Reloader) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	absDir, err := filepath.Abs(configDir)
	if err != nil {
		return err
	}
	// Watch the directory so editors that replace the file are still seen.
	if err := watcher.Add(absDir); err != nil {
		return err
	}
	target := filepath.Join(absDir, "config.yaml")

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(debounce)
			}
		case <-timer.C:
			newCfg, err := config.LoadConfig(absDir)
			if err != nil {
				logger.Log.Error("Failed to reload config", zap.Error(err))
				continue
			}
			logger.Log.Info("Config reloaded", zap.String("path", target))
			reload(newCfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}
