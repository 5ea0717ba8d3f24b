// Package interaction maps pointer positions to graph nodes and emits
// navigation intents for navigable kinds.
package interaction

import (
	"github.com/ritzau/forcegraph/pkg/model"
	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultTolerance is the pixel slop added to each node radius
const DefaultTolerance = 10.0

// Point is a pointer position relative to the drawing surface
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NavigationEvent asks the host to open the resource behind a node
type NavigationEvent struct {
	NodeID string `json:"nodeId"`
	Kind   string `json:"kind"`
}

// Navigator receives navigation events
type Navigator func(NavigationEvent)

// Options configure a Controller
type Options struct {
	Tolerance float64
	Navigable []string
	Navigate  Navigator
}

// Controller hit-tests pointer events. It never mutates the graph.
type Controller struct {
	tolerance float64
	navigable map[string]bool
	navigate  Navigator
}

// NewController creates a controller. A non-positive tolerance means 10px and
// a nil Navigable means only "file" nodes; an empty non-nil list makes
// nothing navigable.
func NewController(opts Options) *Controller {
	c := &Controller{
		tolerance: opts.Tolerance,
		navigable: make(map[string]bool),
		navigate:  opts.Navigate,
	}
	if c.tolerance <= 0 {
		c.tolerance = DefaultTolerance
	}
	kinds := opts.Navigable
	if kinds == nil {
		kinds = []string{"file"}
	}
	for _, k := range kinds {
		c.navigable[k] = true
	}
	return c
}

// HitTest returns the node closest to p among those within radius+tolerance.
// Exact ties go to the node that comes first in the graph.
func (c *Controller) HitTest(p Point, g *model.Graph) (string, bool) {
	at := r2.Vec{X: p.X, Y: p.Y}

	best := -1
	var bestDist float64
	for i, n := range g.Nodes() {
		d := r2.Norm(r2.Sub(n.Pos, at))
		if d > n.Radius+c.tolerance {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return "", false
	}
	return g.At(best).ID, true
}

// Navigable reports whether a kind produces navigation events
func (c *Controller) Navigable(kind string) bool {
	return c.navigable[kind]
}

// Target resolves p to a navigation event, if the hit node is navigable
func (c *Controller) Target(p Point, g *model.Graph) (NavigationEvent, bool) {
	id, ok := c.HitTest(p, g)
	if !ok {
		return NavigationEvent{}, false
	}
	n, _ := g.Node(id)
	if !c.navigable[n.Kind] {
		return NavigationEvent{}, false
	}
	return NavigationEvent{NodeID: n.ID, Kind: n.Kind}, true
}

// Emit hands ev to the navigator
func (c *Controller) Emit(ev NavigationEvent) {
	if c.navigate != nil {
		c.navigate(ev)
	}
}

// Click hit-tests p and emits the resulting navigation event
func (c *Controller) Click(p Point, g *model.Graph) (NavigationEvent, bool) {
	ev, ok := c.Target(p, g)
	if ok {
		c.Emit(ev)
	}
	return ev, ok
}
