package canvas

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/example/doodlekiosk/internal/render"
)

// Format selects the raster encoding used by ExportRaster.
type Format int

const (
	FormatPNG Format = iota
	FormatJPEG
)

// MIME returns the media type for f.
func (f Format) MIME() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// DefaultQuality is the JPEG quality used for submitted drawings.
const DefaultQuality = 70

// ExportRaster encodes the current buffer. quality applies to JPEG only.
func (s *Surface) ExportRaster(format Format, quality int) ([]byte, error) {
	img := s.Snapshot()
	if img == nil {
		return nil, ErrNotLoaded
	}
	return encode(img, format, quality)
}

// ExportResized encodes the buffer as JPEG, downsampling proportionally
// when it exceeds maxWidth×maxHeight. Smaller buffers keep their size.
func (s *Surface) ExportResized(maxWidth, maxHeight, quality int) ([]byte, error) {
	img := s.Snapshot()
	if img == nil {
		return nil, ErrNotLoaded
	}
	size := FitWithin(img.Bounds().Size(), maxWidth, maxHeight)
	var out image.Image = img
	if size != img.Bounds().Size() {
		out = render.Resize(img, size.X, size.Y)
	}
	return encode(out, FormatJPEG, quality)
}

// FitWithin returns size scaled by min(maxW/w, maxH/h) when either side
// exceeds its cap, and size unchanged otherwise.
func FitWithin(size image.Point, maxW, maxH int) image.Point {
	if size.X <= 0 || size.Y <= 0 || (size.X <= maxW && size.Y <= maxH) {
		return size
	}
	ratio := math.Min(float64(maxW)/float64(size.X), float64(maxH)/float64(size.Y))
	w := int(math.Round(float64(size.X) * ratio))
	h := int(math.Round(float64(size.Y) * ratio))
	return image.Pt(max(w, 1), max(h, 1))
}

func encode(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if quality < 1 || quality > 100 {
			quality = DefaultQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	default:
		return nil, fmt.Errorf("canvas: unknown format %d", format)
	}
	return buf.Bytes(), nil
}
