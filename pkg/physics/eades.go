package physics

import (
	"math"

	"github.com/ritzau/forcegraph/pkg/model"
	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// eadesMaxStep bounds a node's displacement per tick, in rest lengths
	eadesMaxStep = 0.5
	eadesCooling = 0.995
	eadesMinTemp = 0.05
)

// Eades computes Eades forces from the positions currently in the model:
// Barnes-Hut inverse-square repulsion over gonum's quadtree and logarithmic
// springs along the links. Distances are measured in rest lengths around the
// surface center. Gravity and the boundary clamp are applied after the step.
//
// The simulator keeps no positions of its own, only a temperature that caps
// the step size and cools every tick.
type Eades struct {
	params EadesParams
	temp   float64
}

// NewEades returns a library-backed simulator
func NewEades(p EadesParams) *Eades {
	return &Eades{params: p, temp: 1}
}

// Reseed reheats the layout so it re-settles after a topology change
func (s *Eades) Reseed() {
	s.temp = 1
}

// Temperature is the current step scale in (0, 1]
func (s *Eades) Temperature() float64 {
	return s.temp
}

// Tick moves every node one cooled Eades step from where it is now
func (s *Eades) Tick(g *model.Graph, size model.Size, p Params) {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return
	}

	unit := p.RestLength
	if unit <= 0 {
		unit = 1
	}
	center := size.Center()

	particles := make([]barneshut.Particle2, len(nodes))
	coords := make([]r2.Vec, len(nodes))
	seen := make(map[r2.Vec]int, len(nodes))
	for i, n := range nodes {
		c := r2.Scale(1/unit, r2.Sub(n.Pos, center))
		if !finite(c) {
			c = r2.Vec{}
		}
		// The quadtree cannot separate coincident particles
		if k := seen[c]; k > 0 {
			seen[c] = k + 1
			c.X += float64(k) * 1e-6
		} else {
			seen[c] = 1
		}
		coords[i] = c
		particles[i] = &eadesParticle{pos: c}
	}

	forces := make([]r2.Vec, len(nodes))
	if s.params.Repulsion > 0 && len(nodes) > 1 {
		plane, err := barneshut.NewPlane(particles)
		if err == nil {
			repel := flooredGravity(p.MinDistance2 / (unit * unit))
			for i, pt := range particles {
				forces[i] = r2.Scale(-s.params.Repulsion, plane.ForceOn(pt, s.params.Theta, repel))
			}
		}
	}

	minNorm := math.Sqrt(p.MinDistance2) / unit
	for _, l := range g.Links() {
		d := r2.Sub(coords[l.To], coords[l.From])
		norm := math.Max(r2.Norm(d), minNorm)
		f := r2.Scale(2*math.Log(norm)/norm, d)
		forces[l.From] = r2.Add(forces[l.From], f)
		forces[l.To] = r2.Sub(forces[l.To], f)
	}

	limit := eadesMaxStep * s.temp
	for i, n := range nodes {
		step := r2.Scale(s.params.Rate, forces[i])
		if !finite(step) {
			step = r2.Vec{}
		}
		if m := r2.Norm(step); m > limit {
			step = r2.Scale(limit/m, step)
		}

		old := n.Pos
		pos := r2.Add(old, r2.Scale(unit, step))
		pos = r2.Add(pos, r2.Scale(p.Gravity, r2.Sub(center, pos)))
		n.Pos = pos
		n.Vel = r2.Sub(pos, old)
		clamp(n, size, p.Margin)
	}

	s.temp = math.Max(eadesMinTemp, s.temp*eadesCooling)
}

type eadesParticle struct {
	pos r2.Vec
}

func (p *eadesParticle) Coord2() r2.Vec { return p.pos }
func (p *eadesParticle) Mass() float64  { return 1 }

// flooredGravity is barneshut.Gravity2 with dist² floored at min2
func flooredGravity(min2 float64) barneshut.Force2 {
	return func(_, _ barneshut.Particle2, m1, m2 float64, v r2.Vec) r2.Vec {
		n := r2.Norm(v)
		if n == 0 {
			return r2.Vec{}
		}
		d2 := math.Max(n*n, min2)
		return r2.Scale(m1*m2/(d2*n), v)
	}
}
