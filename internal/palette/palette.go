package palette

import (
	"image/color"
	"math/rand/v2"
)

// Entry is a named palette colour.
type Entry struct {
	Name  string
	Color color.RGBA
}

// Palette is the ordered set of colours the main display cycles through.
type Palette struct {
	Name    string
	Entries []Entry
}

// Default returns the built-in twelve colour kiosk palette.
func Default() *Palette {
	return &Palette{
		Name: "Default",
		Entries: []Entry{
			{"Red", color.RGBA{0xff, 0x00, 0x00, 0xff}},
			{"Green", color.RGBA{0x00, 0xff, 0x00, 0xff}},
			{"Blue", color.RGBA{0x00, 0x00, 0xff, 0xff}},
			{"Yellow", color.RGBA{0xff, 0xff, 0x00, 0xff}},
			{"Magenta", color.RGBA{0xff, 0x00, 0xff, 0xff}},
			{"Cyan", color.RGBA{0x00, 0xff, 0xff, 0xff}},
			{"Orange", color.RGBA{0xff, 0x80, 0x00, 0xff}},
			{"Violet", color.RGBA{0x80, 0x00, 0xff, 0xff}},
			{"Spring", color.RGBA{0x00, 0xff, 0x80, 0xff}},
			{"Rose", color.RGBA{0xff, 0x00, 0x80, 0xff}},
			{"Chartreuse", color.RGBA{0x80, 0xff, 0x00, 0xff}},
			{"Azure", color.RGBA{0x00, 0x80, 0xff, 0xff}},
		},
	}
}

// Colors returns the palette colours in order.
func (p *Palette) Colors() []color.RGBA {
	if p == nil {
		return nil
	}
	out := make([]color.RGBA, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.Color
	}
	return out
}

// Len reports the number of colours.
func (p *Palette) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Entries)
}

// At returns the colour at idx, wrapping around the palette.
func (p *Palette) At(idx int) color.RGBA {
	if p.Len() == 0 {
		return color.RGBA{A: 0xff}
	}
	idx %= len(p.Entries)
	if idx < 0 {
		idx += len(p.Entries)
	}
	return p.Entries[idx].Color
}

// Random picks a colour uniformly at random.
func (p *Palette) Random() color.RGBA {
	if p.Len() == 0 {
		return color.RGBA{A: 0xff}
	}
	return p.Entries[rand.IntN(len(p.Entries))].Color
}
