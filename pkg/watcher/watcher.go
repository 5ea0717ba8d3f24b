// Package watcher turns file system notifications into batched change events.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ritzau/forcegraph/pkg/logging"
)

// batchWindow groups notifications that arrive together into one event
const batchWindow = 100 * time.Millisecond

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches directories and reports changes to matching files
type FileWatcher struct {
	watcher *fsnotify.Watcher
	match   func(path string) bool
	events  chan ChangeEvent
}

// NewFileWatcher creates a watcher reporting paths accepted by match.
// A nil match accepts everything.
func NewFileWatcher(match func(path string) bool) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if match == nil {
		match = func(string) bool { return true }
	}

	return &FileWatcher{
		watcher: watcher,
		match:   match,
		events:  make(chan ChangeEvent, 100),
	}, nil
}

// WatchFile watches the directory holding path. Editors replace files on
// save, so watching the file itself would lose track of it.
func (fw *FileWatcher) WatchFile(path string) error {
	dir := filepath.Dir(path)
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return nil
}

// WatchTree watches root and every directory below it, skipping hidden ones
func (fw *FileWatcher) WatchTree(root string) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	count := 0
	err = filepath.Walk(resolved, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if !info.IsDir() {
			return nil
		}
		if path != resolved && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			logging.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", resolved, err)
	}

	logging.Debug("monitoring directories", "root", resolved, "count", count)
	return nil
}

// Start begins processing notifications until ctx ends
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.processEvents(ctx)
}

// processEvents batches notifications that arrive within batchWindow
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer func() { _ = fw.watcher.Close() }()

	var paths []string
	seen := make(map[string]bool)

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		if len(paths) == 0 {
			return
		}
		select {
		case fw.events <- ChangeEvent{Paths: paths, Timestamp: time.Now()}:
		case <-ctx.Done():
		}
		paths = nil
		seen = make(map[string]bool)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				flush()
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !fw.match(event.Name) {
				continue
			}
			if !seen[event.Name] {
				seen[event.Name] = true
				paths = append(paths, event.Name)
			}
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events. It is closed when the
// watcher stops.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Close releases the watcher without starting it
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}
