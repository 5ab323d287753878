package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchTargets holds the callback that fires when config.yaml changes.
// The running instance sets this callback at startup.
type WatchTargets struct {
	// OnConfigChange fires when config.yaml is written or created.
	// The watcher itself applies nothing; what happens on a change is up
	// to the callback. The CLI's callback re-runs Load and reports a
	// changed storage.maxBodySize, which, like the proxy/web host and
	// port, only takes effect after a restart.
	OnConfigChange func()
}

// Watcher monitors the AgentProbe config directory for changes to
// config.yaml using fsnotify.
//
// The watcher runs a background goroutine that processes fsnotify events.
// Call Close() to stop the watcher and release resources.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	done      chan struct{}
}

// NewWatcher creates a file watcher on the given config directory.
// It watches for changes to config.yaml.
//
// The watcher immediately starts processing events in a background
// goroutine. Events are not debounced: every write or create event for
// config.yaml fires the callback, so rapid successive writes can fire it
// several times.
func NewWatcher(dir string, targets WatchTargets) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	// Watch the entire config directory. fsnotify will send events for
	// any file created, written, renamed, or removed in this directory.
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	w := &Watcher{
		fsWatcher: fw,
		done:      make(chan struct{}),
	}

	go w.processEvents(targets)

	slog.Info("config watcher started", "dir", dir)
	return w, nil
}

// processEvents reads fsnotify events and dispatches to the config
// change callback. Runs in a background goroutine until Close() is
// called.
func (w *Watcher) processEvents(targets WatchTargets) {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			// We only care about write and create events — not remove
			// or rename, which would indicate the file was deleted.
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if filepath.Base(event.Name) == "config.yaml" {
				slog.Info("config.yaml changed, triggering reload")
				if targets.OnConfigChange != nil {
					targets.OnConfigChange()
				}
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// Close stops the file watcher goroutine and releases the underlying
// fsnotify watcher. Safe to call multiple times.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	return w.fsWatcher.Close()
}
