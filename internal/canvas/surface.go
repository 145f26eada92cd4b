// Package canvas implements the raster drawing surface visitors doodle on:
// a template-backed RGBA buffer with a snapshot history for undo.
package canvas

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/example/doodlekiosk/internal/render"
)

// Default surface resolution.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

var (
	// ErrNotLoaded is returned by operations that need a loaded template.
	ErrNotLoaded = errors.New("canvas: no template loaded")
	// ErrClosed is returned when loading into a closed surface.
	ErrClosed = errors.New("canvas: surface closed")
)

// Brush describes the single stroke style the kiosk supports.
type Brush struct {
	Color color.RGBA
	Width int
}

// DefaultBrush is a 3px black brush.
func DefaultBrush() Brush {
	return Brush{Color: color.RGBA{0, 0, 0, 255}, Width: 3}
}

// Surface is a drawing buffer plus its undo log. All methods are safe for
// concurrent use; the UI goroutine writes while renderers take snapshots.
type Surface struct {
	mu sync.Mutex

	buf    *image.RGBA
	log    []*image.RGBA
	cursor int

	brush    Brush
	viewport Viewport

	stroking bool
	last     Point

	loaded bool
	closed bool
}

// Option configures a Surface.
type Option func(*Surface)

// WithViewport sets the display-to-surface mapping used for pointer input.
func WithViewport(v Viewport) Option { return func(s *Surface) { s.viewport = v } }

// New creates an empty, unloaded surface.
func New(opts ...Option) *Surface {
	s := &Surface{brush: DefaultBrush()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadTemplate decodes src and resets the surface to width×height with the
// template drawn cover-fit on a white ground. History restarts with that
// frame as entry 0. On failure the surface is left untouched.
func (s *Surface) LoadTemplate(src TemplateSource, width, height int, brush Brush) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("canvas: invalid resolution %dx%d", width, height)
	}
	tmpl, err := decodeTemplate(src)
	if err != nil {
		return err
	}

	buf := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(buf, buf.Bounds(), image.White, image.Point{}, draw.Src)
	render.Cover(buf, buf.Bounds(), tmpl, draw.Over)

	if brush.Width <= 0 {
		brush.Width = DefaultBrush().Width
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.buf = buf
	s.log = []*image.RGBA{cloneRGBA(buf)}
	s.cursor = 0
	s.brush = brush
	s.stroking = false
	s.loaded = true
	return nil
}

// SetViewport updates the display mapping, typically after a window resize.
func (s *Surface) SetViewport(v Viewport) {
	s.mu.Lock()
	s.viewport = v
	s.mu.Unlock()
}

// Viewport returns the current display mapping.
func (s *Surface) Viewport() Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// Loaded reports whether a template has been loaded and the surface is
// still open.
func (s *Surface) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded && !s.closed
}

// Resolution returns the buffer size, or the zero point before loading.
func (s *Surface) Resolution() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return image.Point{}
	}
	return s.buf.Bounds().Size()
}

// Undo steps back one history entry and repaints the buffer from it. It is
// a no-op at the first entry. A stroke in progress is abandoned.
func (s *Surface) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded || s.closed || s.cursor == 0 {
		return false
	}
	s.cursor--
	s.stroking = false
	s.restoreLocked()
	return true
}

// CanUndo reports whether Undo would change the buffer.
func (s *Surface) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded && !s.closed && s.cursor > 0
}

// HistoryLen returns the number of snapshots in the log.
func (s *Surface) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.log)
}

// Cursor returns the index of the snapshot the buffer currently shows.
func (s *Surface) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Snapshot returns a copy of the buffer, or nil when nothing is loaded.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded || s.closed {
		return nil
	}
	return cloneRGBA(s.buf)
}

// Close detaches the surface. Later input is ignored and history released.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stroking = false
	s.log = nil
	s.cursor = 0
	s.buf = nil
}

func (s *Surface) restoreLocked() {
	snap := s.log[s.cursor]
	draw.Draw(s.buf, s.buf.Bounds(), image.Transparent, image.Point{}, draw.Src)
	draw.Draw(s.buf, s.buf.Bounds(), snap, snap.Bounds().Min, draw.Src)
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}
