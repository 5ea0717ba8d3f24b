package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ritzau/forcegraph/pkg/logging"
	"github.com/ritzau/forcegraph/pkg/watcher"
)

// DefaultQuiet is the reload debounce used when File.Quiet is zero
const DefaultQuiet = 250 * time.Millisecond

// File loads a snapshot document from disk and reloads it on change
type File struct {
	Path  string
	Quiet time.Duration
}

// Run submits the file's snapshot, then every saved revision until ctx ends.
// A file that fails to decode is reported and the previous graph stays.
func (f File) Run(ctx context.Context, sink Sink) error {
	path, err := filepath.Abs(f.Path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", f.Path, err)
	}

	quiet := f.Quiet
	if quiet <= 0 {
		quiet = DefaultQuiet
	}

	fw, err := watcher.NewFileWatcher(func(p string) bool { return filepath.Clean(p) == path })
	if err != nil {
		return err
	}
	if err := fw.WatchFile(path); err != nil {
		_ = fw.Close()
		return err
	}

	f.load(path, sink)

	fw.Start(ctx)
	debouncer := watcher.NewDebouncer(fw.Events(), quiet, 4*quiet)
	debouncer.Start(ctx)

	for range debouncer.Output() {
		logging.Debug("snapshot file changed", "path", path)
		f.load(path, sink)
	}
	return nil
}

func (f File) load(path string, sink Sink) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Editors briefly remove the file while saving
		if os.IsNotExist(err) {
			logging.Debug("snapshot file missing", "path", path)
			return
		}
		sink.Fail(fmt.Errorf("reading %s: %w", path, err))
		return
	}

	snap, err := ParseSnapshot(data)
	if err != nil {
		sink.Fail(fmt.Errorf("%s: %w", path, err))
		return
	}
	sink.Submit(snap)
}
