package render

import (
	"image"
	"image/color"
	"image/draw"
)

// Crossfade draws from covering rect and then to on top of it at the given
// opacity (0 shows only from, 1 only to). A missing from fades in over black.
func Crossfade(dst *image.RGBA, rect image.Rectangle, from, to image.Image, opacity float64) {
	if from != nil {
		Cover(dst, rect, from, draw.Src)
	} else {
		Fill(dst, rect, color.Black)
	}
	if to == nil || opacity <= 0 {
		return
	}
	if opacity >= 1 {
		Cover(dst, rect, to, draw.Src)
		return
	}
	layer := image.NewRGBA(rect)
	Cover(layer, rect, to, draw.Src)
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	draw.DrawMask(dst, rect, layer, rect.Min, mask, image.Point{}, draw.Over)
}

// Fill paints rect with a solid colour.
func Fill(dst draw.Image, rect image.Rectangle, c color.Color) {
	draw.Draw(dst, rect, image.NewUniform(c), image.Point{}, draw.Src)
}
