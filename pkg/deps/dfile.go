package deps

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileDependency represents dependencies for a single source file
type FileDependency struct {
	SourceFile   string   // e.g., "util/math.cc"
	Dependencies []string // workspace files, e.g., ["util/math.h", "util/strings.h"]
	Externals    []string // external and system dependencies, by display name
}

// sourceSuffixes mark the translation unit among the prerequisites
var sourceSuffixes = []string{".cc", ".cpp", ".cxx", ".c", ".m", ".mm"}

// ParseDFile parses a Makefile-style .d dependency file
// Format: target.o: dep1.cc dep2.h dep3.h ...
func ParseDFile(path string) (*FileDependency, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	dep := &FileDependency{}
	seenExternal := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	var currentLine strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		// Handle line continuations (backslash at end)
		if strings.HasSuffix(strings.TrimSpace(line), "\\") {
			currentLine.WriteString(strings.TrimSuffix(strings.TrimSpace(line), "\\"))
			currentLine.WriteString(" ")
			continue
		}

		currentLine.WriteString(line)
		fullLine := currentLine.String()
		currentLine.Reset()

		idx := strings.Index(fullLine, ":")
		if idx == -1 {
			continue
		}

		for _, prereq := range strings.Fields(fullLine[idx+1:]) {
			if strings.HasPrefix(prereq, "bazel-out/") {
				continue
			}
			if !isWorkspaceFile(prereq) {
				name := ExternalName(prereq)
				if !seenExternal[name] {
					seenExternal[name] = true
					dep.Externals = append(dep.Externals, name)
				}
				continue
			}

			// The first workspace source file is the translation unit
			if dep.SourceFile == "" && isSourceFile(prereq) {
				dep.SourceFile = prereq
				continue
			}
			if prereq != dep.SourceFile {
				dep.Dependencies = append(dep.Dependencies, prereq)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return dep, nil
}

// ExternalName maps a non-workspace prerequisite to a short node id.
// "external/abseil/absl/strings/str_cat.h" becomes "@abseil" and system
// headers keep their base name.
func ExternalName(path string) string {
	if rest, ok := strings.CutPrefix(path, "external/"); ok {
		repo, _, _ := strings.Cut(rest, "/")
		return "@" + repo
	}
	return filepath.Base(path)
}

// isWorkspaceFile checks if a path is a workspace file (not system include)
func isWorkspaceFile(path string) bool {
	// Absolute paths are system includes
	if filepath.IsAbs(path) {
		return false
	}

	// External Bazel dependencies start with "external/"
	if strings.HasPrefix(path, "external/") {
		return false
	}

	// bazel-out paths are build artifacts, not source
	if strings.HasPrefix(path, "bazel-out/") {
		return false
	}

	return true
}

func isSourceFile(path string) bool {
	for _, s := range sourceSuffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}
