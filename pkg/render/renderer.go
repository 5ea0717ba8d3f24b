// Package render draws a model.Graph onto a 2D surface.
package render

import (
	"image/color"

	"github.com/ritzau/forcegraph/pkg/model"
)

// Surface is a rectangular pixel area the renderer can draw into
type Surface interface {
	Size() model.Size
	Clear(c color.Color)
	Line(x1, y1, x2, y2, width float64, c color.Color)
	Circle(x, y, r float64, fill color.Color)
	Ring(x, y, r, width float64, c color.Color)
	Text(x, y float64, s string, c color.Color)
}

// Resizer is implemented by surfaces that can reallocate their pixel area
type Resizer interface {
	Resize(size model.Size)
}

// Flusher is implemented by surfaces that finish a frame explicitly
type Flusher interface {
	Flush() error
}

const (
	edgeWidth   = 1.0
	ringWidth   = 2.0
	ringPadding = 4.0
	labelDX     = 8.0
	labelDY     = 3.0
	valueMax    = 8
)

// Renderer does a full redraw of the graph every frame
type Renderer struct {
	palette   Palette
	highlight map[string]int
}

// NewRenderer creates a renderer with the given palette
func NewRenderer(p Palette) *Renderer {
	return &Renderer{
		palette:   p,
		highlight: make(map[string]int),
	}
}

// Palette returns the colours in use
func (r *Renderer) Palette() Palette {
	return r.palette
}

// Highlight rings ids for the next frames frames
func (r *Renderer) Highlight(ids []string, frames int) {
	if frames <= 0 {
		return
	}
	for _, id := range ids {
		r.highlight[id] = frames
	}
}

// Highlighted reports whether id is currently ringed
func (r *Renderer) Highlighted(id string) bool {
	return r.highlight[id] > 0
}

// Step ages highlights by one frame
func (r *Renderer) Step() {
	for id, n := range r.highlight {
		if n <= 1 {
			delete(r.highlight, id)
			continue
		}
		r.highlight[id] = n - 1
	}
}

// Draw clears s and paints edges, nodes, highlight rings and labels in that order.
// Draw does not modify the renderer, so concurrent draws onto different
// surfaces are safe.
func (r *Renderer) Draw(g *model.Graph, s Surface) error {
	s.Clear(r.palette.Background)

	nodes := g.Nodes()
	for _, l := range g.Links() {
		a, b := nodes[l.From], nodes[l.To]
		s.Line(a.Pos.X, a.Pos.Y, b.Pos.X, b.Pos.Y, edgeWidth, r.palette.Edge)
	}

	for _, n := range nodes {
		s.Circle(n.Pos.X, n.Pos.Y, n.Radius, r.palette.Fill(n.Kind))
	}

	for _, n := range nodes {
		if r.highlight[n.ID] > 0 {
			s.Ring(n.Pos.X, n.Pos.Y, n.Radius+ringPadding, ringWidth, r.palette.Ring)
		}
	}

	for _, n := range nodes {
		s.Text(n.Pos.X+labelDX, n.Pos.Y+labelDY, Label(n), r.palette.Label)
	}

	if f, ok := s.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// Label is the text drawn next to a node
func Label(n *model.Node) string {
	if n.Value == "" {
		return n.Label
	}
	return n.Label + " = " + truncate(n.Value, valueMax)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
