package deps

import (
	"sort"

	"github.com/ritzau/forcegraph/pkg/model"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Node kinds produced from dependency files
const (
	KindFile     = "file"
	KindExternal = "external"
)

const (
	fileRadius     = 5
	externalRadius = 3
)

// FileGraph represents the file-level dependency graph
type FileGraph struct {
	graph *simple.DirectedGraph
	paths []string         // graph ID -> path
	ids   map[string]int64 // path -> graph ID
	kinds map[string]string
}

// NewFileGraph creates a new file dependency graph
func NewFileGraph() *FileGraph {
	return &FileGraph{
		graph: simple.NewDirectedGraph(),
		ids:   make(map[string]int64),
		kinds: make(map[string]string),
	}
}

// AddFile adds a node to the graph; the first kind given for a path wins
func (fg *FileGraph) AddFile(path, kind string) {
	if _, exists := fg.ids[path]; exists {
		return
	}
	id := int64(len(fg.paths))
	fg.paths = append(fg.paths, path)
	fg.ids[path] = id
	fg.kinds[path] = kind
	fg.graph.AddNode(simple.Node(id))
}

// AddDependency adds a dependency edge from source to target
func (fg *FileGraph) AddDependency(source, target, targetKind string) {
	if source == target {
		return
	}
	fg.AddFile(source, KindFile)
	fg.AddFile(target, targetKind)

	from, to := fg.ids[source], fg.ids[target]
	if !fg.graph.HasEdgeFromTo(from, to) {
		fg.graph.SetEdge(fg.graph.NewEdge(simple.Node(from), simple.Node(to)))
	}
}

// Len returns the number of nodes
func (fg *FileGraph) Len() int {
	return len(fg.paths)
}

// Cycles returns the strongly connected file groups with more than one member
func (fg *FileGraph) Cycles() [][]string {
	var cycles [][]string
	for _, scc := range topo.TarjanSCC(fg.graph) {
		if len(scc) < 2 {
			continue
		}
		files := make([]string, 0, len(scc))
		for _, n := range scc {
			files = append(files, fg.paths[n.ID()])
		}
		sort.Strings(files)
		cycles = append(cycles, files)
	}
	return cycles
}

// Snapshot converts the graph to a visualizer snapshot. Nodes are in
// insertion order and edges run from source file to dependency.
func (fg *FileGraph) Snapshot() model.Snapshot {
	nodes := make([]model.NodeSpec, len(fg.paths))
	for i, path := range fg.paths {
		kind := fg.kinds[path]
		radius := float64(fileRadius)
		if kind == KindExternal {
			radius = externalRadius
		}
		nodes[i] = model.NodeSpec{ID: path, Kind: kind, Radius: radius}
	}

	var edges model.ExplicitEdges
	for id, path := range fg.paths {
		to := fg.graph.From(int64(id))
		var targets []string
		for to.Next() {
			targets = append(targets, fg.paths[to.Node().ID()])
		}
		sort.Strings(targets)
		for _, target := range targets {
			edges = append(edges, model.Edge{Source: path, Target: target})
		}
	}
	return model.Snapshot{Nodes: nodes, Rule: edges}
}

// BuildFileGraph builds a file dependency graph from .d file data
func BuildFileGraph(fileDeps []*FileDependency) *FileGraph {
	fg := NewFileGraph()

	for _, dep := range fileDeps {
		if dep.SourceFile == "" {
			continue
		}
		fg.AddFile(dep.SourceFile, KindFile)
		for _, depFile := range dep.Dependencies {
			fg.AddDependency(dep.SourceFile, depFile, KindFile)
		}
		for _, ext := range dep.Externals {
			fg.AddDependency(dep.SourceFile, ext, KindExternal)
		}
	}

	return fg
}
