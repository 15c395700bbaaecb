package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/fsnotify.v1"
)

// DefaultWatchDelay is how long Watch waits after the last change before
// importing, so a batch of copied files triggers a single run.
const DefaultWatchDelay = 2 * time.Second

// Watch runs an import whenever an XML file in the import directory is
// created, written or renamed. It blocks until ctx is cancelled. Each
// run's result is passed to onRun. Watched runs always replace the
// edition's laws.
func (imp *Importer) Watch(ctx context.Context, delay time.Duration, onRun func(*Report, error)) error {
	if imp.config.Directory == "" {
		return fmt.Errorf("no directory configured for watching")
	}
	if delay <= 0 {
		delay = DefaultWatchDelay
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(imp.config.Directory); err != nil {
		return fmt.Errorf("watching directory: %w", err)
	}
	imp.logger.Info("watching import directory", "directory", imp.config.Directory)

	return imp.watchLoop(ctx, watcher, delay, onRun)
}

// watchLoop handles file system events.
func (imp *Importer) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, delay time.Duration, onRun func(*Report, error)) error {
	timer := time.NewTimer(delay)
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
			if !strings.EqualFold(filepath.Ext(event.Name), ".xml") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			imp.logger.Debug("import directory changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(delay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			imp.logger.Warn("watch error", "error", err)

		case <-timer.C:
			report, err := imp.run(ctx, true)
			if onRun != nil {
				onRun(report, err)
			}
		}
	}
}
