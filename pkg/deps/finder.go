package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ritzau/forcegraph/pkg/logging"
)

// FindDFiles finds all .d dependency files under root.
// When root contains a bazel-out directory only that tree is searched.
func FindDFiles(root string) ([]string, error) {
	var dfiles []string

	searchPath := root
	bazelOutPath := filepath.Join(root, "bazel-out")
	if resolved, err := filepath.EvalSymlinks(bazelOutPath); err == nil {
		searchPath = resolved
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("resolving bazel-out symlink: %w", err)
	}

	err := filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors for individual files
		}

		if info.IsDir() {
			return nil
		}

		// Only include .d files that don't have extra suffixes
		// We want "math.d" but not "math.ii.d" or "math.s.d"
		if filepath.Ext(path) == ".d" && strings.Count(filepath.Base(path), ".") == 1 {
			dfiles = append(dfiles, path)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", searchPath, err)
	}

	return dfiles, nil
}

// ParseAllDFiles finds and parses all .d files under root
func ParseAllDFiles(root string) ([]*FileDependency, error) {
	dfiles, err := FindDFiles(root)
	if err != nil {
		return nil, err
	}

	var deps []*FileDependency
	for _, dfile := range dfiles {
		dep, err := ParseDFile(dfile)
		if err != nil {
			logging.Debug("skipping unreadable dependency file", "path", dfile, "error", err)
			continue
		}

		// Only include if we found a source file
		if dep.SourceFile != "" {
			deps = append(deps, dep)
		}
	}

	return deps, nil
}
