package canvas

import "image"

// Point is a position in display or surface coordinates.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Viewport maps display coordinates onto the surface: the surface is shown
// at Origin scaled to Size display pixels.
type Viewport struct {
	Origin image.Point
	Size   image.Point
}

// ToSurface converts a display position into surface coordinates using
// (p - origin) * resolution / displaySize. An empty viewport is the
// identity mapping.
func (v Viewport) ToSurface(p Point, res image.Point) Point {
	if v.Size.X <= 0 || v.Size.Y <= 0 {
		return p
	}
	return Point{
		X: (p.X - float64(v.Origin.X)) * float64(res.X) / float64(v.Size.X),
		Y: (p.Y - float64(v.Origin.Y)) * float64(res.Y) / float64(v.Size.Y),
	}
}

// Rect returns the display rectangle the surface occupies.
func (v Viewport) Rect() image.Rectangle {
	return image.Rectangle{Min: v.Origin, Max: v.Origin.Add(v.Size)}
}
