package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"git.sr.ht/~sbinet/gg"
	"github.com/ritzau/forcegraph/pkg/model"
	"golang.org/x/image/font/basicfont"
)

// Raster draws into an in-memory RGBA image
type Raster struct {
	dc   *gg.Context
	size model.Size
}

// NewRaster allocates a raster surface
func NewRaster(size model.Size) *Raster {
	r := &Raster{}
	r.Resize(size)
	return r
}

func (r *Raster) Size() model.Size {
	return r.size
}

// Resize reallocates the image; the next frame draws at the new size
func (r *Raster) Resize(size model.Size) {
	w := int(math.Max(1, math.Round(size.Width)))
	h := int(math.Max(1, math.Round(size.Height)))
	r.dc = gg.NewContext(w, h)
	r.dc.SetFontFace(basicfont.Face7x13)
	r.size = model.Size{Width: float64(w), Height: float64(h)}
}

func (r *Raster) Clear(c color.Color) {
	r.dc.SetColor(c)
	r.dc.Clear()
}

func (r *Raster) Line(x1, y1, x2, y2, width float64, c color.Color) {
	r.dc.SetColor(c)
	r.dc.SetLineWidth(width)
	r.dc.DrawLine(x1, y1, x2, y2)
	r.dc.Stroke()
}

func (r *Raster) Circle(x, y, radius float64, fill color.Color) {
	r.dc.SetColor(fill)
	r.dc.DrawCircle(x, y, radius)
	r.dc.Fill()
}

func (r *Raster) Ring(x, y, radius, width float64, c color.Color) {
	r.dc.SetColor(c)
	r.dc.SetLineWidth(width)
	r.dc.DrawCircle(x, y, radius)
	r.dc.Stroke()
}

func (r *Raster) Text(x, y float64, s string, c color.Color) {
	r.dc.SetColor(c)
	r.dc.DrawString(s, x, y)
}

// Image returns the current frame
func (r *Raster) Image() image.Image {
	return r.dc.Image()
}

// EncodePNG writes the current frame as PNG
func (r *Raster) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, r.dc.Image()); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}
