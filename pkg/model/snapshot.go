package model

import (
	"sort"

	"github.com/ritzau/forcegraph/pkg/logging"
	"gonum.org/v1/gonum/graph/simple"
)

// NodeSpec is a node as supplied by a data feed
type NodeSpec struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Label       string  `json:"label,omitempty"`
	Value       string  `json:"value,omitempty"`
	IdentityKey string  `json:"identityKey,omitempty"`
	Radius      float64 `json:"radius,omitempty"`
}

// Snapshot is a full replacement of the graph contents.
type Snapshot struct {
	Nodes []NodeSpec
	Rule  EdgeRule
}

// EdgeRule produces the edge set for a snapshot's nodes
type EdgeRule interface {
	Edges(nodes []NodeSpec) []Edge
}

// ExplicitEdges is an edge rule carrying edges given by the data source.
type ExplicitEdges []Edge

// Edges returns the explicit edge list
func (e ExplicitEdges) Edges([]NodeSpec) []Edge {
	return e
}

// IdentityEdges links every pair of nodes that share an identity key.
// When Kinds is non-empty only nodes of those kinds are grouped.
type IdentityEdges struct {
	Kinds []string
}

// Edges groups nodes by identity key and emits each group's pairwise edges
func (r IdentityEdges) Edges(nodes []NodeSpec) []Edge {
	allowed := make(map[string]bool, len(r.Kinds))
	for _, k := range r.Kinds {
		allowed[k] = true
	}

	var order []string
	groups := make(map[string][]string)
	for _, n := range nodes {
		if n.IdentityKey == "" {
			continue
		}
		if len(allowed) > 0 && !allowed[n.Kind] {
			continue
		}
		if _, seen := groups[n.IdentityKey]; !seen {
			order = append(order, n.IdentityKey)
		}
		groups[n.IdentityKey] = append(groups[n.IdentityKey], n.ID)
	}

	var edges []Edge
	for _, key := range order {
		ids := groups[key]
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				edges = append(edges, Edge{Source: ids[i], Target: ids[j]})
			}
		}
	}
	return edges
}

// ChangeSet reports what a merge did, for re-seeding and UI feedback
type ChangeSet struct {
	Added        []string `json:"added"`
	Updated      []string `json:"updated"`
	Removed      []string `json:"removed"`
	EdgesChanged bool     `json:"edgesChanged"`
}

// Empty reports whether the merge changed nothing
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0 && !c.EdgesChanged
}

// Reseed reports whether the layout has to re-settle after this change
func (c ChangeSet) Reseed() bool {
	return len(c.Added) > 0 || len(c.Removed) > 0 || c.EdgesChanged
}

// Touched returns the ids that were added or updated
func (c ChangeSet) Touched() []string {
	ids := make([]string, 0, len(c.Added)+len(c.Updated))
	ids = append(ids, c.Added...)
	return append(ids, c.Updated...)
}

// Merge replaces the graph contents with the snapshot.
// Nodes present before and after keep their position and velocity; new nodes
// are spawned at random with zero velocity. Invalid entries are dropped.
func (g *Graph) Merge(s Snapshot) ChangeSet {
	specs := filterSpecs(s.Nodes)

	var change ChangeSet
	nodes := make([]*Node, 0, len(specs))
	index := make(map[string]int, len(specs))

	for _, spec := range specs {
		n := &Node{
			ID:          spec.ID,
			Kind:        spec.Kind,
			Label:       spec.Label,
			Value:       spec.Value,
			IdentityKey: spec.IdentityKey,
			Radius:      spec.Radius,
		}
		if n.Label == "" {
			n.Label = shortLabel(n.ID)
		}
		if n.Radius <= 0 {
			n.Radius = DefaultRadius
		}

		if old, ok := g.Node(spec.ID); ok {
			n.Pos = old.Pos
			n.Vel = old.Vel
			if old.Value != n.Value || old.IdentityKey != n.IdentityKey {
				change.Updated = append(change.Updated, n.ID)
			}
		} else {
			n.Pos = g.spawn()
			change.Added = append(change.Added, n.ID)
		}

		index[n.ID] = len(nodes)
		nodes = append(nodes, n)
	}

	for _, old := range g.nodes {
		if _, ok := index[old.ID]; !ok {
			change.Removed = append(change.Removed, old.ID)
		}
	}

	var raw []Edge
	if s.Rule != nil {
		raw = s.Rule.Edges(specs)
	}
	edges, links, adj := resolveEdges(raw, nodes, index)

	change.EdgesChanged = !sameEdges(g.edges, edges)

	g.nodes = nodes
	g.index = index
	g.edges = edges
	g.links = links
	g.adj = adj

	sort.Strings(change.Added)
	sort.Strings(change.Updated)
	sort.Strings(change.Removed)

	return change
}

// Touches returns the ids a merge of s would add or update, in snapshot
// order, without changing the graph
func (g *Graph) Touches(s Snapshot) []string {
	var ids []string
	for _, spec := range filterSpecs(s.Nodes) {
		old, ok := g.Node(spec.ID)
		if !ok || old.Value != spec.Value || old.IdentityKey != spec.IdentityKey {
			ids = append(ids, spec.ID)
		}
	}
	return ids
}

// filterSpecs drops entries without an id and repeated ids
func filterSpecs(in []NodeSpec) []NodeSpec {
	out := make([]NodeSpec, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, spec := range in {
		if spec.ID == "" {
			logging.Warn("dropping snapshot node without id", "kind", spec.Kind, "label", spec.Label)
			continue
		}
		if seen[spec.ID] {
			logging.Warn("dropping duplicate snapshot node", "id", spec.ID)
			continue
		}
		seen[spec.ID] = true
		out = append(out, spec)
	}
	return out
}

// resolveEdges keeps edges whose endpoints exist, dropping self edges and repeats
func resolveEdges(raw []Edge, nodes []*Node, index map[string]int) ([]Edge, []Link, *simple.UndirectedGraph) {
	adj := simple.NewUndirectedGraph()
	for i := range nodes {
		adj.AddNode(simple.Node(int64(i)))
	}

	var edges []Edge
	var links []Link
	for _, e := range raw {
		from, okFrom := index[e.Source]
		to, okTo := index[e.Target]
		if !okFrom || !okTo {
			logging.Debug("dropping dangling edge", "source", e.Source, "target", e.Target)
			continue
		}
		if from == to {
			logging.Debug("dropping self edge", "node", e.Source)
			continue
		}
		if adj.HasEdgeBetween(int64(from), int64(to)) {
			continue
		}
		adj.SetEdge(adj.NewEdge(simple.Node(int64(from)), simple.Node(int64(to))))
		edges = append(edges, e)
		links = append(links, Link{From: from, To: to})
	}
	return edges, links, adj
}

// sameEdges compares two edge sets ignoring order and direction
func sameEdges(a, b []Edge) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[[2]string]bool, len(a))
	for _, e := range a {
		set[edgeKey(e)] = true
	}
	for _, e := range b {
		if !set[edgeKey(e)] {
			return false
		}
	}
	return true
}

func edgeKey(e Edge) [2]string {
	if e.Source > e.Target {
		return [2]string{e.Target, e.Source}
	}
	return [2]string{e.Source, e.Target}
}
