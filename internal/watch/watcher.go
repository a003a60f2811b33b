// Package watch notifies browsing clients when a watched directory's
// contents change, debouncing bursts of filesystem events.
package watch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tannerhall/assetview/internal/debug"
)

// DirectoryWatcher watches directories for changes and notifies when
// refreshes are needed.
type DirectoryWatcher struct {
	watcher    *fsnotify.Watcher
	mu         sync.Mutex
	watching   map[string]bool // Currently watched paths
	notify     chan string     // Channel carrying changed directory paths
	done       chan struct{}   // Shutdown signal
	closeOnce  sync.Once
	debounceMs int
}

// NewDirectoryWatcher creates a new directory watcher.
func NewDirectoryWatcher(debounceMs int) (*DirectoryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounceMs <= 0 {
		debounceMs = 200 // Default 200ms debounce
	}

	dw := &DirectoryWatcher{
		watcher:    w,
		watching:   make(map[string]bool),
		notify:     make(chan string, 10),
		done:       make(chan struct{}),
		debounceMs: debounceMs,
	}

	go dw.run()
	return dw, nil
}

// Notify returns the channel on which changed directory paths arrive.
func (dw *DirectoryWatcher) Notify() <-chan string {
	return dw.notify
}

// Watch adds a directory to the watch set.
func (dw *DirectoryWatcher) Watch(dir string) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.watching[dir] {
		return nil
	}
	if err := dw.watcher.Add(dir); err != nil {
		return err
	}
	dw.watching[dir] = true
	debug.Log(debug.WATCH, "watching %q", dir)
	return nil
}

// Unwatch removes a directory from the watch set.
func (dw *DirectoryWatcher) Unwatch(dir string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if !dw.watching[dir] {
		return
	}
	delete(dw.watching, dir)
	if err := dw.watcher.Remove(dir); err != nil {
		debug.Log(debug.WATCH, "unwatch %q: %v", dir, err)
	}
}

// Close shuts the watcher down.
func (dw *DirectoryWatcher) Close() {
	dw.closeOnce.Do(func() {
		close(dw.done)
		dw.watcher.Close()
	})
}

// run processes filesystem events with debouncing.
func (dw *DirectoryWatcher) run() {
	// Debounce: track last event time per directory
	lastEvent := make(map[string]time.Time)
	pending := make(map[string]bool)
	debounce := time.Duration(dw.debounceMs) * time.Millisecond
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case <-dw.done:
			return

		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}

			// We care about creates, deletes, renames, and writes
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Write) {
				// fsnotify reports the full path of the changed file;
				// map it back to the watched directory containing it.
				changedPath := event.Name
				parentDir := filepath.Dir(changedPath)

				dw.mu.Lock()
				if dw.watching[parentDir] {
					lastEvent[parentDir] = time.Now()
					pending[parentDir] = true
					debug.Log(debug.WATCH, "event: %s on %s (parent %s)", event.Op, changedPath, parentDir)
				} else if dw.watching[changedPath] {
					// The watched directory itself was modified
					lastEvent[changedPath] = time.Now()
					pending[changedPath] = true
					debug.Log(debug.WATCH, "event: %s on watched dir %s", event.Op, changedPath)
				}
				dw.mu.Unlock()
			}

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			debug.Log(debug.WATCH, "watcher error: %v", err)

		case <-ticker.C:
			now := time.Now()
			for dir, isPending := range pending {
				if isPending && now.Sub(lastEvent[dir]) >= debounce {
					pending[dir] = false
					delete(lastEvent, dir)
					select {
					case dw.notify <- dir:
						debug.Log(debug.WATCH, "notify: %s", dir)
					default:
						// Receiver is behind; drop rather than block
					}
				}
			}
		}
	}
}
