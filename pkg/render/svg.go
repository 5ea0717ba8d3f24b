package render

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	svg "github.com/ajstarks/svgo"
	"github.com/ritzau/forcegraph/pkg/model"
)

// SVG writes each frame as a standalone SVG document.
// A frame starts with Clear and completes with Flush; Bytes returns the last
// completed document.
type SVG struct {
	size   model.Size
	buf    bytes.Buffer
	canvas *svg.SVG
	last   []byte
}

// NewSVG creates an SVG surface
func NewSVG(size model.Size) *SVG {
	return &SVG{size: size}
}

func (s *SVG) Size() model.Size {
	return s.size
}

func (s *SVG) Resize(size model.Size) {
	s.size = size
}

func (s *SVG) Clear(c color.Color) {
	s.buf.Reset()
	s.canvas = svg.New(&s.buf)
	w, h := px(s.size.Width), px(s.size.Height)
	s.canvas.Start(w, h)
	s.canvas.Rect(0, 0, w, h, fillStyle(c))
}

func (s *SVG) Line(x1, y1, x2, y2, width float64, c color.Color) {
	s.begin()
	s.canvas.Line(px(x1), px(y1), px(x2), px(y2),
		fmt.Sprintf("stroke:%s;stroke-opacity:%.2f;stroke-width:%g", Hex(c), opacity(c), width))
}

func (s *SVG) Circle(x, y, r float64, fill color.Color) {
	s.begin()
	s.canvas.Circle(px(x), px(y), px(r), fillStyle(fill))
}

func (s *SVG) Ring(x, y, r, width float64, c color.Color) {
	s.begin()
	s.canvas.Circle(px(x), px(y), px(r),
		fmt.Sprintf("fill:none;stroke:%s;stroke-opacity:%.2f;stroke-width:%g", Hex(c), opacity(c), width))
}

func (s *SVG) Text(x, y float64, str string, c color.Color) {
	s.begin()
	s.canvas.Text(px(x), px(y), str,
		fmt.Sprintf("%s;font-size:10px;font-family:monospace", fillStyle(c)))
}

// Flush closes the document and makes it available through Bytes
func (s *SVG) Flush() error {
	if s.canvas == nil {
		return fmt.Errorf("svg frame was never started")
	}
	s.canvas.End()
	s.last = bytes.Clone(s.buf.Bytes())
	s.canvas = nil
	return nil
}

// Bytes returns the last completed document
func (s *SVG) Bytes() []byte {
	return s.last
}

// begin starts a transparent frame when drawing without Clear
func (s *SVG) begin() {
	if s.canvas == nil {
		s.buf.Reset()
		s.canvas = svg.New(&s.buf)
		s.canvas.Start(px(s.size.Width), px(s.size.Height))
	}
}

func fillStyle(c color.Color) string {
	return fmt.Sprintf("fill:%s;fill-opacity:%.2f", Hex(c), opacity(c))
}

func px(v float64) int {
	return int(math.Round(v))
}
