package physics

import (
	"math"

	"github.com/ritzau/forcegraph/pkg/model"
	"gonum.org/v1/gonum/spatial/r2"
)

// capSlack keeps a capped energy strictly below the ceiling despite rounding
const capSlack = 1 - 1e-9

// Integrator is the hand-rolled force simulator.
//
// Each tick accumulates pairwise inverse-square repulsion, linear springs on
// every link and a pull toward the surface center, then integrates with
// damping and clamps to the surface.
//
// The ceiling is the layout's temperature: kinetic energy is never allowed to
// exceed the energy of the previous tick, so a settling layout cannot pick
// energy back up. Reseed lifts the ceiling.
type Integrator struct {
	ceiling float64
	forces  []r2.Vec
}

// NewIntegrator returns an integrator ready for a fresh layout
func NewIntegrator() *Integrator {
	return &Integrator{ceiling: math.Inf(1)}
}

// Reseed lets the next tick gain energy again
func (s *Integrator) Reseed() {
	s.ceiling = math.Inf(1)
}

// Ceiling returns the current energy ceiling
func (s *Integrator) Ceiling() float64 {
	return s.ceiling
}

// Tick advances the layout by one step
func (s *Integrator) Tick(g *model.Graph, size model.Size, p Params) {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return
	}

	if cap(s.forces) < len(nodes) {
		s.forces = make([]r2.Vec, len(nodes))
	}
	forces := s.forces[:len(nodes)]
	for i := range forces {
		forces[i] = r2.Vec{}
	}

	s.repel(nodes, forces, p)
	s.attract(nodes, g.Links(), forces, p)

	center := size.Center()
	for i, n := range nodes {
		forces[i] = r2.Add(forces[i], r2.Scale(p.Gravity, r2.Sub(center, n.Pos)))
	}

	var ke float64
	for i, n := range nodes {
		n.Vel = r2.Scale(p.Damping, r2.Add(n.Vel, forces[i]))
		if !finite(n.Vel) {
			n.Vel = r2.Vec{}
		}
		ke += r2.Norm2(n.Vel)
	}

	if ke > s.ceiling {
		f := math.Sqrt(s.ceiling/ke) * capSlack
		for _, n := range nodes {
			n.Vel = r2.Scale(f, n.Vel)
		}
	}

	for _, n := range nodes {
		n.Pos = r2.Add(n.Pos, n.Vel)
		clamp(n, size, p.Margin)
	}

	s.ceiling = KineticEnergy(g)
}

// repel applies k/max(d², ε) along the line between every unordered pair
func (s *Integrator) repel(nodes []*model.Node, forces []r2.Vec, p Params) {
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			d := r2.Sub(nodes[i].Pos, nodes[j].Pos)
			d2 := r2.Norm2(d)

			// Coincident nodes are pushed apart along x
			dir := r2.Vec{X: 1}
			if d2 > 0 {
				dir = r2.Scale(1/math.Sqrt(d2), d)
			}

			f := r2.Scale(p.Repulsion/math.Max(d2, p.MinDistance2), dir)
			forces[i] = r2.Add(forces[i], f)
			forces[j] = r2.Sub(forces[j], f)
		}
	}
}

// attract applies (d - rest) * k along every link
func (s *Integrator) attract(nodes []*model.Node, links []model.Link, forces []r2.Vec, p Params) {
	for _, l := range links {
		d := r2.Sub(nodes[l.To].Pos, nodes[l.From].Pos)
		dist := r2.Norm(d)
		if dist == 0 {
			continue
		}
		f := r2.Scale((dist-p.RestLength)*p.Spring/dist, d)
		forces[l.From] = r2.Add(forces[l.From], f)
		forces[l.To] = r2.Sub(forces[l.To], f)
	}
}
