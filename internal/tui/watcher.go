package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/berth-dev/focus/internal/config"
)

// reloadDebounce collapses the burst of events an editor save produces.
const reloadDebounce = 200 * time.Millisecond

// configWatcher reports changes to config.yaml. The data directory is
// watched rather than the file so replace-on-save editors are seen.
type configWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

func newConfigWatcher(dir string) (*configWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &configWatcher{
		path:     filepath.Clean(config.Path(dir)),
		watcher:  w,
		debounce: reloadDebounce,
	}, nil
}

// run calls onChange once per settled burst of writes to the config file
// until ctx is done. Watcher errors are passed to onError.
func (cw *configWatcher) run(ctx context.Context, onChange func(), onError func(error)) error {
	defer cw.watcher.Close()

	var (
		timer   *time.Timer
		settled <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(cw.debounce)
			} else {
				timer.Reset(cw.debounce)
			}
			settled = timer.C

		case <-settled:
			settled = nil
			onChange()

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
