package canvas

import (
	"image"
	"image/color"
	"math"
)

// BeginStroke starts a stroke at p (display coordinates) and paints a dot.
func (s *Surface) BeginStroke(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded || s.closed {
		return
	}
	sp := s.viewport.ToSurface(p, s.buf.Bounds().Size())
	s.stroking = true
	s.last = sp
	drawSegment(s.buf, sp, sp, s.brush)
}

// ExtendStroke adds a segment from the previous point to p.
func (s *Surface) ExtendStroke(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stroking || s.closed {
		return
	}
	sp := s.viewport.ToSurface(p, s.buf.Bounds().Size())
	drawSegment(s.buf, s.last, sp, s.brush)
	s.last = sp
}

// EndStroke commits the stroke: any redo tail past the cursor is dropped and
// a snapshot of the buffer becomes the new cursor entry.
func (s *Surface) EndStroke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stroking || s.closed {
		return
	}
	s.stroking = false
	s.log = append(s.log[:s.cursor+1], cloneRGBA(s.buf))
	s.cursor = len(s.log) - 1
}

// Stroking reports whether a stroke is in progress.
func (s *Surface) Stroking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stroking
}

// drawSegment paints a capsule of diameter brush.Width between a and b. The
// rounded ends give round caps and, between consecutive segments, round
// joins. Pixels are composited source-over.
func drawSegment(img *image.RGBA, a, b Point, brush Brush) {
	r := float64(brush.Width) / 2
	if r < 0.5 {
		r = 0.5
	}
	minX := int(math.Floor(math.Min(a.X, b.X) - r))
	maxX := int(math.Ceil(math.Max(a.X, b.X) + r))
	minY := int(math.Floor(math.Min(a.Y, b.Y) - r))
	maxY := int(math.Ceil(math.Max(a.Y, b.Y) + r))
	area := image.Rect(minX, minY, maxX+1, maxY+1).Intersect(img.Bounds())
	if area.Empty() {
		return
	}
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	r2 := r * r
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			t := 0.0
			if lenSq > 0 {
				t = ((px-a.X)*dx + (py-a.Y)*dy) / lenSq
				t = math.Max(0, math.Min(1, t))
			}
			cx, cy := a.X+t*dx-px, a.Y+t*dy-py
			if cx*cx+cy*cy <= r2 {
				blendOver(img, x, y, brush.Color)
			}
		}
	}
}

func blendOver(img *image.RGBA, x, y int, c color.RGBA) {
	i := img.PixOffset(x, y)
	if c.A == 255 {
		img.Pix[i+0], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, 255
		return
	}
	ia := 255 - uint32(c.A)
	img.Pix[i+0] = uint8(uint32(c.R) + uint32(img.Pix[i+0])*ia/255)
	img.Pix[i+1] = uint8(uint32(c.G) + uint32(img.Pix[i+1])*ia/255)
	img.Pix[i+2] = uint8(uint32(c.B) + uint32(img.Pix[i+2])*ia/255)
	img.Pix[i+3] = uint8(uint32(c.A) + uint32(img.Pix[i+3])*ia/255)
}
