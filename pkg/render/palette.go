package render

import (
	"fmt"
	"hash/fnv"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette maps node kinds and chrome to colours
type Palette struct {
	Background color.Color
	Edge       color.Color
	Label      color.Color
	Ring       color.Color
	Kinds      map[string]color.Color
}

// DefaultPalette is the dark neon scheme of the dashboard
func DefaultPalette() Palette {
	return Palette{
		Background: mustHex("#0a0a0a"),
		Edge:       color.NRGBA{R: 6, G: 182, B: 212, A: 51},
		Label:      color.NRGBA{R: 255, G: 255, B: 255, A: 178},
		Ring:       mustHex("#22d3ee"),
		Kinds: map[string]color.Color{
			"file":     mustHex("#06b6d4"),
			"external": mustHex("#ffffff"),
			"int":      mustHex("#0ea5e9"),
			"float":    mustHex("#38bdf8"),
			"str":      mustHex("#a3e635"),
			"bool":     mustHex("#facc15"),
			"NoneType": mustHex("#737373"),
			"list":     mustHex("#f472b6"),
			"tuple":    mustHex("#e879f9"),
			"dict":     mustHex("#fb923c"),
			"set":      mustHex("#c084fc"),
			"object":   mustHex("#f87171"),
		},
	}
}

// Fill returns the node colour for a kind.
// Unknown kinds get a stable hue derived from the kind name.
func (p Palette) Fill(kind string) color.Color {
	if c, ok := p.Kinds[kind]; ok {
		return c
	}
	h := fnv.New32a()
	h.Write([]byte(kind))
	hue := float64(h.Sum32() % 360)
	return colorful.Hsv(hue, 0.55, 0.95).Clamped()
}

// Hex renders c as #rrggbb, dropping alpha
func Hex(c color.Color) string {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		// Fully transparent
		return "#000000"
	}
	return cf.Hex()
}

// opacity returns the alpha of c in [0, 1]
func opacity(c color.Color) float64 {
	_, _, _, a := c.RGBA()
	return float64(a) / 0xffff
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(fmt.Sprintf("bad palette colour %q: %v", s, err))
	}
	return c
}
