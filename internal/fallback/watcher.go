package fallback

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads the rule set from path whenever the file changes, until ctx
// is cancelled. The parent directory is watched rather than the file so that
// editors which save through rename keep being picked up. A file that fails
// to load or validate is logged and the active rule set is kept.
func (c *Categorizer) Watch(ctx context.Context, path string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	logger.Info("rules watcher: started", slog.String("path", abs))

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("rules watcher: stopped")
			return nil

		case <-timerCh:
			rules, loadErr := LoadRules(abs)
			if loadErr != nil {
				logger.Warn("rules watcher: reload failed, keeping previous rules",
					slog.String("path", abs),
					slog.String("error", loadErr.Error()))
				continue
			}
			c.SetRules(rules)
			logger.Info("rules watcher: reloaded", slog.String("path", abs))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerCh = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("rules watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
