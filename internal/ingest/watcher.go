package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-ingest/internal/logging"
)

// Watcher monitors the incoming root and triggers an ingest run after the
// directory has been quiet for the debounce interval. Runs are executed on
// the watcher goroutine, so at most one auto-run is ever in flight.
type Watcher struct {
	root     string
	debounce time.Duration
	trigger  func(ctx context.Context)
	fsw      *fsnotify.Watcher
}

// NewWatcher creates a Watcher over root. trigger is invoked after events
// settle; it should be the same code path as a manual ingest run.
func NewWatcher(root string, debounce time.Duration, trigger func(ctx context.Context)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		trigger:  trigger,
		fsw:      fsw,
	}, nil
}

// Start begins watching and blocks until ctx is cancelled or the event
// stream closes. The whole incoming tree is covered: existing
// subdirectories are registered up front and new ones as they appear, so
// files landing anywhere the scanner would find them arm the debounce.
// Run it on its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	logging.Info("Watching %s for incoming files (debounce %s)", w.root, w.debounce)

	// The timer is armed by the first event and re-armed by each one after,
	// so a burst of writes coalesces into a single run.
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if strings.HasPrefix(lastSegment(event.Name), ".") {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						logging.Warn("Failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}
			logging.Debug("Incoming event: %s", event)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Watcher error: %v", err)

		case <-timer.C:
			logging.Info("Incoming directory settled, starting ingest run")
			w.trigger(ctx)
		}
	}
}

// addTree registers root and every non-hidden directory below it, matching
// the ScanIncoming traversal.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func lastSegment(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
