package feed

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ritzau/forcegraph/pkg/model"
)

// Group numbers used by the dependency endpoint
const (
	groupFile     = 1
	groupExternal = 2
)

// wireNode accepts both the kind-based and the group-based node shape
type wireNode struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Group       int     `json:"group"`
	Label       string  `json:"label"`
	Value       any     `json:"value"`
	IdentityKey string  `json:"identityKey"`
	Radius      float64 `json:"radius"`
}

type wireEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type wireSnapshot struct {
	Nodes []wireNode  `json:"nodes"`
	Edges *[]wireEdge `json:"edges"`
	Links *[]wireEdge `json:"links"`
}

// DecodeSnapshot reads one snapshot document.
// Documents carrying neither edges nor links derive their edges from
// identity keys.
func DecodeSnapshot(r io.Reader) (model.Snapshot, error) {
	var ws wireSnapshot
	if err := json.NewDecoder(r).Decode(&ws); err != nil {
		return model.Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return ws.snapshot(), nil
}

// ParseSnapshot decodes a snapshot from a byte slice
func ParseSnapshot(data []byte) (model.Snapshot, error) {
	var ws wireSnapshot
	if err := json.Unmarshal(data, &ws); err != nil {
		return model.Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return ws.snapshot(), nil
}

func (ws wireSnapshot) snapshot() model.Snapshot {
	specs := make([]model.NodeSpec, 0, len(ws.Nodes))
	for _, n := range ws.Nodes {
		specs = append(specs, model.NodeSpec{
			ID:          n.ID,
			Kind:        n.kind(),
			Label:       n.Label,
			Value:       valueString(n.Value),
			IdentityKey: n.IdentityKey,
			Radius:      n.Radius,
		})
	}

	var raw []wireEdge
	switch {
	case ws.Edges != nil:
		raw = *ws.Edges
	case ws.Links != nil:
		raw = *ws.Links
	default:
		return model.Snapshot{Nodes: specs, Rule: model.IdentityEdges{}}
	}

	edges := make(model.ExplicitEdges, 0, len(raw))
	for _, e := range raw {
		edges = append(edges, model.Edge{Source: e.Source, Target: e.Target})
	}
	return model.Snapshot{Nodes: specs, Rule: edges}
}

func (n wireNode) kind() string {
	if n.Kind != "" {
		return n.Kind
	}
	switch n.Group {
	case groupFile:
		return "file"
	case groupExternal:
		return "external"
	}
	return ""
}

// valueString renders scalar values as they appear in the source. Strings
// pass through unquoted.
func valueString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
