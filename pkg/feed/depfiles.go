package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ritzau/forcegraph/pkg/deps"
	"github.com/ritzau/forcegraph/pkg/logging"
	"github.com/ritzau/forcegraph/pkg/watcher"
)

// DepFiles builds a file dependency graph from compiler .d files under Root
// and, with Watch set, rebuilds it whenever they change.
type DepFiles struct {
	Root  string
	Watch bool
	Quiet time.Duration
}

// Run submits the current dependency graph and, when watching, each rebuild
func (d DepFiles) Run(ctx context.Context, sink Sink) error {
	if err := d.scan(sink); err != nil {
		sink.Fail(err)
		return err
	}
	if !d.Watch {
		return nil
	}

	fw, err := watcher.NewFileWatcher(isDFile)
	if err != nil {
		return err
	}
	for _, dir := range d.watchRoots() {
		if err := fw.WatchTree(dir); err != nil {
			_ = fw.Close()
			return err
		}
	}

	quiet := d.Quiet
	if quiet <= 0 {
		quiet = time.Second
	}

	fw.Start(ctx)
	debouncer := watcher.NewDebouncer(fw.Events(), quiet, 10*quiet)
	debouncer.Start(ctx)

	for ev := range debouncer.Output() {
		logging.Info("dependency files changed, rebuilding", "files", len(ev.Paths))
		if err := d.scan(sink); err != nil {
			sink.Fail(err)
		}
	}
	return nil
}

func (d DepFiles) scan(sink Sink) error {
	fileDeps, err := deps.ParseAllDFiles(d.Root)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", d.Root, err)
	}

	fg := deps.BuildFileGraph(fileDeps)
	for _, cycle := range fg.Cycles() {
		logging.Warn("include cycle", "files", strings.Join(cycle, " -> "))
	}

	logging.Info("built dependency graph", "root", d.Root, "dfiles", len(fileDeps), "nodes", fg.Len())
	sink.Submit(fg.Snapshot())
	return nil
}

// watchRoots returns the directories holding .d files. bazel-out is a
// symlink out of the workspace, so it is watched separately.
func (d DepFiles) watchRoots() []string {
	if out, err := filepath.EvalSymlinks(filepath.Join(d.Root, "bazel-out")); err == nil {
		return []string{out}
	}
	return []string{d.Root}
}

func isDFile(path string) bool {
	if filepath.Ext(path) != ".d" || strings.Count(filepath.Base(path), ".") != 1 {
		return false
	}
	info, err := os.Stat(path)
	return err != nil || !info.IsDir()
}
