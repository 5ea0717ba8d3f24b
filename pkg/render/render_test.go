package render

import (
	"bytes"
	"image/color"
	"image/png"
	"math/rand"
	"strings"
	"testing"

	"github.com/ritzau/forcegraph/pkg/model"
	"gonum.org/v1/gonum/spatial/r2"
)

// recorder is a surface that logs the order of draw calls
type recorder struct {
	size    model.Size
	ops     []string
	texts   []string
	flushed bool
}

func (r *recorder) Size() model.Size                               { return r.size }
func (r *recorder) Clear(color.Color)                              { r.ops = append(r.ops, "clear") }
func (r *recorder) Line(_, _, _, _, _ float64, _ color.Color)      { r.ops = append(r.ops, "line") }
func (r *recorder) Circle(_, _, _ float64, _ color.Color)          { r.ops = append(r.ops, "circle") }
func (r *recorder) Ring(_, _, _, _ float64, _ color.Color)         { r.ops = append(r.ops, "ring") }
func (r *recorder) Resize(s model.Size)                            { r.size = s }
func (r *recorder) Flush() error                                   { r.flushed = true; return nil }
func (r *recorder) Text(_, _ float64, s string, _ color.Color) {
	r.ops = append(r.ops, "text")
	r.texts = append(r.texts, s)
}

func testGraph() *model.Graph {
	g := model.NewGraph(
		model.WithRand(rand.New(rand.NewSource(1))),
		model.WithBounds(model.Size{Width: 200, Height: 200}),
	)
	g.Merge(model.Snapshot{
		Nodes: []model.NodeSpec{
			{ID: "src/engine.py", Kind: "file"},
			{ID: "numpy", Kind: "external"},
			{ID: "x", Kind: "int", Value: "12345678901"},
		},
		Rule: model.ExplicitEdges{{Source: "src/engine.py", Target: "numpy"}},
	})
	g.At(0).Pos = r2.Vec{X: 100, Y: 100}
	g.At(1).Pos = r2.Vec{X: 150, Y: 60}
	g.At(2).Pos = r2.Vec{X: 40, Y: 160}
	return g
}

func TestDrawOrder(t *testing.T) {
	g := testGraph()
	r := NewRenderer(DefaultPalette())
	r.Highlight([]string{"numpy"}, 2)

	s := &recorder{size: model.Size{Width: 200, Height: 200}}
	if err := r.Draw(g, s); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	want := []string{"clear", "line", "circle", "circle", "circle", "ring", "text", "text", "text"}
	if strings.Join(s.ops, ",") != strings.Join(want, ",") {
		t.Errorf("Expected draw order %v, got %v", want, s.ops)
	}
	if !s.flushed {
		t.Error("Expected surface to be flushed")
	}
	if s.texts[0] != "engine.py" {
		t.Errorf("Expected basename label, got %q", s.texts[0])
	}
	if s.texts[2] != "x = 1234567…" {
		t.Errorf("Expected truncated value label, got %q", s.texts[2])
	}
}

func TestHighlightExpires(t *testing.T) {
	r := NewRenderer(DefaultPalette())
	r.Highlight([]string{"a"}, 2)

	if !r.Highlighted("a") {
		t.Fatal("Expected a to be highlighted")
	}
	r.Step()
	if !r.Highlighted("a") {
		t.Error("Expected highlight to last two frames")
	}
	r.Step()
	if r.Highlighted("a") {
		t.Error("Expected highlight to expire after two frames")
	}
}

func TestPaletteFill(t *testing.T) {
	p := DefaultPalette()
	if got := Hex(p.Fill("file")); got != "#06b6d4" {
		t.Errorf("Expected cyan for files, got %s", got)
	}
	if got := Hex(p.Fill("external")); got != "#ffffff" {
		t.Errorf("Expected white for externals, got %s", got)
	}
	if Hex(p.Fill("Matrix")) != Hex(p.Fill("Matrix")) {
		t.Error("Expected a stable colour for unknown kinds")
	}
	if Hex(p.Fill("Matrix")) == Hex(p.Fill("Vector")) && Hex(p.Fill("Matrix")) == Hex(p.Fill("Tensor")) {
		t.Error("Expected unknown kinds to get distinct colours")
	}
}

func TestRasterDrawsNodes(t *testing.T) {
	g := testGraph()
	surface := NewRaster(model.Size{Width: 200, Height: 200})

	if err := NewRenderer(DefaultPalette()).Draw(g, surface); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	got := color.RGBAModel.Convert(surface.Image().At(100, 100)).(color.RGBA)
	want := color.RGBA{R: 0x06, G: 0xb6, B: 0xd4, A: 0xff}
	if got != want {
		t.Errorf("Expected file colour at node center, got %v", got)
	}

	var buf bytes.Buffer
	if err := surface.EncodePNG(&buf); err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Output is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 200 {
		t.Errorf("Expected 200x200 image, got %v", img.Bounds())
	}
}

func TestRasterResize(t *testing.T) {
	surface := NewRaster(model.Size{Width: 200, Height: 200})
	surface.Resize(model.Size{Width: 320, Height: 240})

	if surface.Size() != (model.Size{Width: 320, Height: 240}) {
		t.Errorf("Expected resized surface, got %v", surface.Size())
	}
	if b := surface.Image().Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("Expected 320x240 image, got %v", b)
	}
}

func TestSVGDocument(t *testing.T) {
	g := testGraph()
	surface := NewSVG(model.Size{Width: 200, Height: 200})

	if err := NewRenderer(DefaultPalette()).Draw(g, surface); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	doc := string(surface.Bytes())
	for _, want := range []string{"<svg", "<line", "<circle", "engine.py", "</svg>"} {
		if !strings.Contains(doc, want) {
			t.Errorf("Expected %q in svg output", want)
		}
	}
	if strings.Count(doc, "<circle") != 3 {
		t.Errorf("Expected 3 circles, got %d", strings.Count(doc, "<circle"))
	}
}

func TestSVGFlushWithoutFrame(t *testing.T) {
	if err := NewSVG(model.Size{Width: 10, Height: 10}).Flush(); err == nil {
		t.Error("Expected error flushing an unstarted frame")
	}
}
