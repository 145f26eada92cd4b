package render

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextSize reports the pixel size of s rendered with basicfont at scale.
func TextSize(s string, scale int) image.Point {
	if scale < 1 {
		scale = 1
	}
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	w := d.MeasureString(s).Ceil()
	m := face.Metrics()
	h := (m.Ascent + m.Descent).Ceil()
	return image.Pt(w*scale, h*scale)
}

// Text draws s centred on center, scaling the fixed 7x13 face by an integer
// factor so it stays legible on large kiosk screens.
func Text(dst draw.Image, center image.Point, s string, col color.Color, scale int) image.Rectangle {
	if s == "" {
		return image.Rectangle{}
	}
	if scale < 1 {
		scale = 1
	}
	face := basicfont.Face7x13
	size := TextSize(s, 1)
	small := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	d := &font.Drawer{Dst: small, Src: image.NewUniform(col), Face: face}
	d.Dot = fixed.P(0, face.Metrics().Ascent.Ceil())
	d.DrawString(s)

	w, h := size.X*scale, size.Y*scale
	r := image.Rect(center.X-w/2, center.Y-h/2, center.X-w/2+w, center.Y-h/2+h)
	xdraw.NearestNeighbor.Scale(dst, r, small, small.Bounds(), draw.Over, nil)
	return r
}

// Caption draws s on a shadowed panel centred on center.
func Caption(dst *image.RGBA, center image.Point, s string, fg, bg color.Color, scale int) image.Rectangle {
	size := TextSize(s, scale)
	pad := 6 * scale
	rect := image.Rect(center.X-size.X/2-pad, center.Y-size.Y/2-pad, center.X+size.X/2+pad, center.Y+size.Y/2+pad)
	Panel(dst, rect, bg, DefaultShadowOptions())
	Text(dst, center, s, fg, scale)
	return rect
}
