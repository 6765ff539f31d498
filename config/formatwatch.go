package config

import (
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/nanolog/nanolog/internal/logging"
)

// FormatFileWatcher hot-reloads the decoder's line format pattern from a
// file, so a long-running reader can pick up an edited pattern without
// restarting. `cmd/nanolog-decode` takes its pattern from `-f` and does
// not use this watcher.
// This is deliberately scoped to the *decoder's* pattern only — the
// logger engine's own Config is fixed at Init/InitEx time and never
// reloaded mid-flight (spec.md §5 has no mid-flight reconfiguration
// operation).
//
// Grounded on ClusterCockpit-cc-backend's internal/util/fswatcher.go:
// one fsnotify.Watcher and one goroutine draining its Events/Errors
// channels, which on every write or create re-reads the file into a
// mutex-guarded pattern that Pattern returns.
type FormatFileWatcher struct {
	w      *fsnotify.Watcher
	path   string
	mu     sync.RWMutex
	latest string
}

// NewFormatFileWatcher reads path once for an initial pattern, then
// starts watching it for writes. Callers read the current pattern via
// Pattern(); Close stops the watch goroutine.
func NewFormatFileWatcher(path string) (*FormatFileWatcher, error) {
	initial, err := readPattern(path)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	fw := &FormatFileWatcher{w: w, path: path, latest: initial}
	go fw.loop()
	return fw, nil
}

func readPattern(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\n"), nil
}

func (fw *FormatFileWatcher) loop() {
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pattern, err := readPattern(fw.path)
			if err != nil {
				logging.Warn("config: reloading format file failed", "path", fw.path, "err", err)
				continue
			}
			fw.mu.Lock()
			fw.latest = pattern
			fw.mu.Unlock()
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			logging.Warn("config: format file watch error", "path", fw.path, "err", err)
		}
	}
}

// Pattern returns the most recently loaded pattern.
func (fw *FormatFileWatcher) Pattern() string {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	return fw.latest
}

// Close stops the watch goroutine.
func (fw *FormatFileWatcher) Close() error {
	return fw.w.Close()
}
