package ui

import (
	colorful "github.com/lucasb-eyer/go-colorful"

	"karolbroda.com/lyrisync/internal/artwork"
)

type Palette struct {
	Primary   string
	Secondary string
	Accent    string
	Dim       string
	Error     string
}

func DefaultPalette() *Palette {
	return &Palette{
		Primary:   "#8BA4E8",
		Secondary: "#E8A4C8",
		Accent:    "#B8A8E8",
		Dim:       "#6272A4",
		Error:     "#FF6B6B",
	}
}

// withArtwork takes the highlight colors from album art and keeps the rest.
func (p *Palette) withArtwork(c artwork.Colors) *Palette {
	out := *p
	out.Primary = c.Primary
	out.Secondary = c.Secondary
	out.Accent = c.Accent
	return &out
}

// blend mixes two hex colors in Lab space, t=0 giving a and t=1 giving b.
// An unparsable color yields the other one.
func blend(a string, b string, t float64) string {
	ca, err := colorful.Hex(a)
	if err != nil {
		return b
	}
	cb, err := colorful.Hex(b)
	if err != nil {
		return a
	}
	return ca.BlendLab(cb, clamp(t, 0, 1)).Clamped().Hex()
}

// contextColor fades lines away from the highlighted one toward Dim.
func (p *Palette) contextColor(distance int, passed bool) string {
	base := p.Secondary
	if passed {
		base = p.Accent
	}
	return blend(base, p.Dim, 0.35*float64(distance))
}
