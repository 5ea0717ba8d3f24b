// Package output prints human-readable reports for the command line.
package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
)

// settledEnergy is the kinetic energy below which a layout counts as at rest
const settledEnergy = 1e-3

// RenderSummary describes an offline layout run
type RenderSummary struct {
	Input  string
	Output string
	Ticks  int
	Nodes  int
	Edges  int
	Energy float64
	Kinds  map[string]int
	Failed []string
}

// Settled reports whether the layout came to rest
func (s RenderSummary) Settled() bool {
	return s.Energy < settledEnergy
}

// PrintRenderSummary prints a nicely formatted layout report with colors
func PrintRenderSummary(w io.Writer, s RenderSummary) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Fprintln(w, "forcegraph - Render Report")
	bold.Fprintln(w, "==========================")
	fmt.Fprintf(w, "Input:  %s\n", s.Input)
	fmt.Fprintf(w, "Output: %s\n", s.Output)
	fmt.Fprintf(w, "Graph:  %d nodes, %d edges\n", s.Nodes, s.Edges)
	fmt.Fprintln(w)

	if len(s.Kinds) > 0 {
		kinds := make([]string, 0, len(s.Kinds))
		for k := range s.Kinds {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)

		bold.Fprintln(w, "NODE KINDS:")
		for _, k := range kinds {
			name := k
			if name == "" {
				name = "(none)"
			}
			cyan.Fprintf(w, "  %-12s", name)
			fmt.Fprintf(w, " %d\n", s.Kinds[k])
		}
		fmt.Fprintln(w)
	}

	if len(s.Failed) > 0 {
		red.Fprintln(w, "FEED ERRORS:")
		for _, msg := range s.Failed {
			yellow.Fprintf(w, "  %s\n", msg)
		}
		fmt.Fprintln(w)
	}

	if s.Settled() {
		green.Fprintf(w, "Summary: settled after %d ticks (energy %.2g)\n", s.Ticks, s.Energy)
		green.Fprintln(w, "✓ Layout is at rest")
	} else {
		yellow.Fprintf(w, "Summary: still moving after %d ticks (energy %.2g)\n", s.Ticks, s.Energy)
	}
}
