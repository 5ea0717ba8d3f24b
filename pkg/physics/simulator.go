// Package physics advances node positions and velocities of a model.Graph.
//
// Two simulators implement the same capability: Integrator is a hand-rolled
// O(n²) spring/repulsion integrator, Eades computes Eades forces over gonum's
// Barnes-Hut quadtree.
package physics

import (
	"fmt"
	"math"

	"github.com/ritzau/forcegraph/pkg/model"
	"gonum.org/v1/gonum/spatial/r2"
)

// Simulator advances a graph layout one tick at a time
type Simulator interface {
	// Tick mutates node Pos and Vel in place
	Tick(g *model.Graph, size model.Size, p Params)
	// Reseed raises the simulation energy so the layout re-settles
	Reseed()
}

// Simulator kinds accepted by New
const (
	KindIntegrator = "integrator"
	KindEades      = "eades"
)

// New builds a simulator by kind name
func New(kind string, ep EadesParams) (Simulator, error) {
	switch kind {
	case "", KindIntegrator:
		return NewIntegrator(), nil
	case KindEades:
		if err := ep.Validate(); err != nil {
			return nil, err
		}
		return NewEades(ep), nil
	}
	return nil, fmt.Errorf("unknown simulator %q", kind)
}

// KineticEnergy returns Σ|v|² over all nodes
func KineticEnergy(g *model.Graph) float64 {
	var ke float64
	for _, n := range g.Nodes() {
		ke += r2.Norm2(n.Vel)
	}
	return ke
}

// clamp keeps n inside [margin, size-margin] on both axes and removes the
// velocity component pointing out of the surface
func clamp(n *model.Node, size model.Size, margin float64) {
	n.Pos.X, n.Vel.X = clampAxis(n.Pos.X, n.Vel.X, size.Width, margin)
	n.Pos.Y, n.Vel.Y = clampAxis(n.Pos.Y, n.Vel.Y, size.Height, margin)
}

func clampAxis(pos, vel, extent, margin float64) (float64, float64) {
	lo, hi := margin, extent-margin
	if hi < lo {
		return extent / 2, 0
	}
	if math.IsNaN(pos) {
		return (lo + hi) / 2, 0
	}
	if pos < lo {
		pos = lo
		if vel < 0 {
			vel = 0
		}
	} else if pos > hi {
		pos = hi
		if vel > 0 {
			vel = 0
		}
	}
	return pos, vel
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}
