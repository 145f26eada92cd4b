package render

import (
	"image"
	"image/color"
	"image/draw"
)

// ShadowOptions configures the drop shadow drawn under a panel.
type ShadowOptions struct {
	Radius  int
	Offset  image.Point
	Opacity float64
}

// DefaultShadowOptions returns the soft shadow used under kiosk overlays.
func DefaultShadowOptions() ShadowOptions {
	return ShadowOptions{
		Radius:  12,
		Offset:  image.Pt(6, 8),
		Opacity: 0.45,
	}
}

// Panel fills rect on dst with fill after compositing a blurred shadow of
// the rectangle offset by opts.Offset.
func Panel(dst *image.RGBA, rect image.Rectangle, fill color.Color, opts ShadowOptions) {
	if rect.Empty() {
		return
	}
	opacity := opts.Opacity
	if opacity > 1 {
		opacity = 1
	}
	if opacity > 0 {
		radius := opts.Radius
		if radius < 0 {
			radius = 0
		}
		padded := rect.Inset(-radius)
		mask := image.NewGray(padded.Sub(padded.Min))
		inner := rect.Sub(padded.Min)
		draw.Draw(mask, inner, image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)
		blurred := boxBlur(mask, radius)
		shade := image.NewUniform(color.RGBA{0, 0, 0, uint8(opacity*255 + 0.5)})
		at := padded.Add(opts.Offset)
		draw.DrawMask(dst, at, shade, image.Point{}, blurred, image.Point{}, draw.Over)
	}
	draw.Draw(dst, rect, image.NewUniform(fill), image.Point{}, draw.Over)
}

// Outline draws a rectangle border of the given thickness inside rect.
func Outline(dst draw.Image, rect image.Rectangle, c color.Color, thick int) {
	u := image.NewUniform(c)
	draw.Draw(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+thick), u, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(rect.Min.X, rect.Max.Y-thick, rect.Max.X, rect.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+thick, rect.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(rect.Max.X-thick, rect.Min.Y, rect.Max.X, rect.Max.Y), u, image.Point{}, draw.Src)
}

// boxBlur runs a separable box blur of the given radius over src using
// running prefix sums per row and column.
func boxBlur(src *image.Gray, radius int) *image.Gray {
	out := image.NewGray(src.Bounds())
	if radius <= 0 {
		copy(out.Pix, src.Pix)
		return out
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	tmp := image.NewGray(src.Bounds())
	blurLine(w, h, radius, func(i, j int) int { return int(src.Pix[j*src.Stride+i]) }, func(i, j int, v uint8) { tmp.Pix[j*tmp.Stride+i] = v })
	blurLine(h, w, radius, func(i, j int) int { return int(tmp.Pix[i*tmp.Stride+j]) }, func(i, j int, v uint8) { out.Pix[i*out.Stride+j] = v })
	return out
}

func blurLine(n, lines, radius int, get func(i, line int) int, set func(i, line int, v uint8)) {
	prefix := make([]int, n+1)
	for line := 0; line < lines; line++ {
		for i := 0; i < n; i++ {
			prefix[i+1] = prefix[i] + get(i, line)
		}
		for i := 0; i < n; i++ {
			lo := max(i-radius, 0)
			hi := min(i+radius, n-1)
			set(i, line, uint8((prefix[hi+1]-prefix[lo])/(hi-lo+1)))
		}
	}
}
