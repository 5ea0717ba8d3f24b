package model

import (
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultRadius is used for nodes that arrive without a radius
const DefaultRadius = 4.0

// spawnInset keeps freshly spawned nodes away from the surface edge
const spawnInset = 20.0

// Size is the pixel size of a drawing surface
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the surface
func (s Size) Center() r2.Vec {
	return r2.Vec{X: s.Width / 2, Y: s.Height / 2}
}

// Node is a vertex of the live graph.
// Pos and Vel are simulation state and belong to the physics package.
type Node struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Label       string  `json:"label"`
	Value       string  `json:"value,omitempty"`
	IdentityKey string  `json:"identityKey,omitempty"`
	Radius      float64 `json:"radius"`

	Pos r2.Vec `json:"-"`
	Vel r2.Vec `json:"-"`
}

// Edge is an undirected connection between two node ids.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Link is an edge resolved to arena indices
type Link struct {
	From int
	To   int
}

// Graph owns the current node set and edge set of a visualizer.
// Nodes live in an arena slice in snapshot order; index maps id to arena slot.
type Graph struct {
	nodes []*Node
	index map[string]int
	edges []Edge
	links []Link
	adj   *simple.UndirectedGraph

	bounds Size
	rnd    *rand.Rand
}

// Option configures a Graph
type Option func(*Graph)

// WithRand sets the random source used to place new nodes
func WithRand(r *rand.Rand) Option {
	return func(g *Graph) { g.rnd = r }
}

// WithBounds sets the initial spawn area
func WithBounds(s Size) Option {
	return func(g *Graph) { g.bounds = s }
}

// NewGraph creates an empty graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		index: make(map[string]int),
		adj:   simple.NewUndirectedGraph(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rnd == nil {
		g.rnd = rand.New(rand.NewSource(rand.Int63()))
	}
	return g
}

// SetBounds updates the area new nodes are spawned in.
func (g *Graph) SetBounds(s Size) {
	g.bounds = s
}

// Bounds returns the current spawn area
func (g *Graph) Bounds() Size {
	return g.bounds
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns the node arena. Callers may mutate Pos and Vel only.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// At returns the node in arena slot i
func (g *Graph) At(i int) *Node {
	return g.nodes[i]
}

// Node returns the node with the given id
func (g *Graph) Node(id string) (*Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// IndexOf returns the arena slot of id
func (g *Graph) IndexOf(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Edges returns the resolved edges by id
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Links returns the resolved edges by arena index
func (g *Graph) Links() []Link {
	return g.links
}

// Adjacency returns the edge set as a gonum graph whose node ids are arena slots.
func (g *Graph) Adjacency() graph.Undirected {
	return g.adj
}

// Degree returns the number of edges touching id
func (g *Graph) Degree(id string) int {
	i, ok := g.index[id]
	if !ok {
		return 0
	}
	return g.adj.From(int64(i)).Len()
}

// Neighbors returns the ids linked to id
func (g *Graph) Neighbors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	var ids []string
	iter := g.adj.From(int64(i))
	for iter.Next() {
		ids = append(ids, g.nodes[iter.Node().ID()].ID)
	}
	return ids
}

// spawn picks a uniform random position over the bounds
func (g *Graph) spawn() r2.Vec {
	w, h := g.bounds.Width, g.bounds.Height
	inset := spawnInset
	if w <= 2*inset || h <= 2*inset {
		inset = 0
	}
	return r2.Vec{
		X: inset + g.rnd.Float64()*(w-2*inset),
		Y: inset + g.rnd.Float64()*(h-2*inset),
	}
}

// shortLabel returns the last path segment of an id
func shortLabel(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 && i < len(id)-1 {
		return id[i+1:]
	}
	return id
}
