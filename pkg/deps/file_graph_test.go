package deps

import (
	"reflect"
	"testing"
)

func TestBuildFileGraphSnapshot(t *testing.T) {
	fg := BuildFileGraph([]*FileDependency{
		{SourceFile: "core/engine.cc", Dependencies: []string{"core/engine.h", "util/math.h"}, Externals: []string{"@abseil"}},
		{SourceFile: "util/math.cc", Dependencies: []string{"util/math.h"}},
		{SourceFile: "", Dependencies: []string{"ignored.h"}},
	})

	snap := fg.Snapshot()
	if len(snap.Nodes) != 5 {
		t.Fatalf("Expected 5 nodes, got %d: %+v", len(snap.Nodes), snap.Nodes)
	}

	kinds := make(map[string]string)
	for _, n := range snap.Nodes {
		kinds[n.ID] = n.Kind
	}
	if kinds["@abseil"] != KindExternal || kinds["util/math.h"] != KindFile {
		t.Errorf("Unexpected kinds %v", kinds)
	}
	if snap.Nodes[0].Radius != fileRadius {
		t.Errorf("Expected file radius %d, got %v", fileRadius, snap.Nodes[0].Radius)
	}

	edges := snap.Rule.Edges(snap.Nodes)
	if len(edges) != 4 {
		t.Errorf("Expected 4 edges, got %v", edges)
	}
	if edges[0].Source != "core/engine.cc" {
		t.Errorf("Expected edges to run from the source file, got %v", edges[0])
	}
}

func TestFileGraphCycles(t *testing.T) {
	fg := NewFileGraph()
	fg.AddDependency("a.h", "b.h", KindFile)
	fg.AddDependency("b.h", "a.h", KindFile)
	fg.AddDependency("b.h", "c.h", KindFile)
	fg.AddDependency("c.h", "c.h", KindFile)

	cycles := fg.Cycles()
	if len(cycles) != 1 {
		t.Fatalf("Expected 1 cycle, got %v", cycles)
	}
	if !reflect.DeepEqual(cycles[0], []string{"a.h", "b.h"}) {
		t.Errorf("Expected cycle [a.h b.h], got %v", cycles[0])
	}
}

func TestFileGraphNoCycles(t *testing.T) {
	fg := NewFileGraph()
	fg.AddDependency("a.cc", "b.h", KindFile)
	fg.AddDependency("b.h", "c.h", KindFile)

	if cycles := fg.Cycles(); len(cycles) != 0 {
		t.Errorf("Expected no cycles, got %v", cycles)
	}
	if fg.Len() != 3 {
		t.Errorf("Expected 3 nodes, got %d", fg.Len())
	}
}
