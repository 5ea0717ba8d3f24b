package loop

import (
	"fmt"

	"github.com/ritzau/forcegraph/pkg/model"
	"github.com/ritzau/forcegraph/pkg/physics"
)

// State is the lifecycle of a visualizer instance
type State int

const (
	Idle State = iota
	Loading
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FrameNode is a node position in a published frame
type FrameNode struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Label       string  `json:"label"`
	Value       string  `json:"value,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Radius      float64 `json:"radius"`
	Highlighted bool    `json:"highlighted,omitempty"`
}

// Frame is an immutable copy of the layout after a tick
type Frame struct {
	Instance string       `json:"instance"`
	Seq      uint64       `json:"seq"`
	State    State        `json:"state"`
	Energy   float64      `json:"energy"`
	Size     model.Size   `json:"size"`
	Nodes    []FrameNode  `json:"nodes"`
	Edges    []model.Edge `json:"edges"`
}

// capture copies the layout. Called with mu held.
func (l *Loop) capture() Frame {
	nodes := l.graph.Nodes()
	f := Frame{
		Instance: l.id,
		Seq:      l.seq,
		State:    l.state,
		Energy:   physics.KineticEnergy(l.graph),
		Size:     l.size,
		Nodes:    make([]FrameNode, len(nodes)),
		Edges:    append([]model.Edge(nil), l.graph.Edges()...),
	}
	for i, n := range nodes {
		f.Nodes[i] = FrameNode{
			ID:          n.ID,
			Kind:        n.Kind,
			Label:       n.Label,
			Value:       n.Value,
			X:           n.Pos.X,
			Y:           n.Pos.Y,
			Radius:      n.Radius,
			Highlighted: l.renderer.Highlighted(n.ID),
		}
	}
	return f
}
