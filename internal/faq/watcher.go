package faq

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher re-runs reload whenever the FAQ source file changes. Bursts of
// events inside the debounce window trigger a single reload.
type Watcher struct {
	path     string
	debounce time.Duration
	reload   func(ctx context.Context) error
}

func NewWatcher(path string, debounce time.Duration, reload func(ctx context.Context) error) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{path: filepath.Clean(path), debounce: debounce, reload: reload}
}

// Run blocks until ctx is done. The parent directory is watched so that
// editors which replace the file on save are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	log.Info().Str("file", w.path).Msg("Watching FAQ file for changes")

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isFAQEvent(event, w.path) {
				continue
			}
			if !pending {
				timer.Reset(w.debounce)
				pending = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("FAQ watch error")
		case <-timer.C:
			pending = false
			if err := w.reload(ctx); err != nil {
				log.Error().Err(err).Str("file", w.path).Msg("FAQ reload failed")
				continue
			}
			log.Info().Str("file", w.path).Msg("FAQ corpus reloaded")
		}
	}
}

func isFAQEvent(event fsnotify.Event, path string) bool {
	if filepath.Clean(event.Name) != path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
