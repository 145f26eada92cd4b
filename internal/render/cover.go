package render

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// CoverRect returns the rectangle, centred on dst, that src must be scaled to
// so that it fills dst completely while keeping its aspect ratio. The result
// may extend beyond dst.
func CoverRect(src image.Point, dst image.Rectangle) image.Rectangle {
	return fitRect(src, dst, true)
}

// ContainRect returns the largest rectangle centred on dst with the aspect
// ratio of src that fits entirely inside dst.
func ContainRect(src image.Point, dst image.Rectangle) image.Rectangle {
	return fitRect(src, dst, false)
}

func fitRect(src image.Point, dst image.Rectangle, cover bool) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 || dst.Empty() {
		return dst
	}
	sx := float64(dst.Dx()) / float64(src.X)
	sy := float64(dst.Dy()) / float64(src.Y)
	scale := sx
	if (cover && sy > sx) || (!cover && sy < sx) {
		scale = sy
	}
	w := int(float64(src.X)*scale + 0.5)
	h := int(float64(src.Y)*scale + 0.5)
	x := dst.Min.X + (dst.Dx()-w)/2
	y := dst.Min.Y + (dst.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// Cover scales src to fill rect on dst, cropping the overflow.
func Cover(dst draw.Image, rect image.Rectangle, src image.Image, op draw.Op) {
	if src == nil || rect.Empty() {
		return
	}
	target := CoverRect(src.Bounds().Size(), rect)
	xdraw.ApproxBiLinear.Scale(clip(dst, rect), target, src, src.Bounds(), op, nil)
}

// Resize returns src scaled to exactly w×h.
func Resize(src image.Image, w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(out, out.Bounds(), src, src.Bounds(), draw.Src, nil)
	return out
}

// clipped restricts drawing to a sub-rectangle of an image.
type clipped struct {
	draw.Image
	r image.Rectangle
}

func (c clipped) Bounds() image.Rectangle { return c.r }

func clip(dst draw.Image, r image.Rectangle) draw.Image {
	r = r.Intersect(dst.Bounds())
	if rgba, ok := dst.(*image.RGBA); ok {
		return rgba.SubImage(r).(*image.RGBA)
	}
	return clipped{dst, r}
}
