// Package session drives the secondary screen through its Start, Draw and
// End steps and hands finished drawings to the store, the local cache and
// the main display.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/example/doodlekiosk/internal/cache"
	"github.com/example/doodlekiosk/internal/canvas"
	"github.com/example/doodlekiosk/internal/clock"
	"github.com/example/doodlekiosk/internal/dataurl"
	"github.com/example/doodlekiosk/internal/handoff"
	"github.com/example/doodlekiosk/internal/store"
)

// Step is one screen of the secondary display.
type Step int

const (
	StepStart Step = iota
	StepDraw
	StepEnd
)

func (s Step) String() string {
	switch s {
	case StepStart:
		return "start"
	case StepDraw:
		return "draw"
	case StepEnd:
		return "end"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Notes carried on hand-off messages.
const (
	NoteSubmitted = "drawing finished, show it"
	NoteReturned  = "back to start, switch to random colours"
	NoteTimedOut  = "timed out, back to start, switch to random colours"
)

// DefaultStepTimeout is the inactivity limit of the Draw and End steps.
const DefaultStepTimeout = 60 * time.Second

// Uploader sends an encoded drawing to the image store.
type Uploader interface {
	Upload(ctx context.Context, filename, mimeType string, data []byte) (store.Stored, error)
}

// Cache keeps the last drawing for a main display that starts later.
type Cache interface {
	Put(key string, value []byte) (string, error)
}

// Options configures a Controller. Zero values select defaults.
type Options struct {
	Clock     clock.Clock
	Channel   handoff.Channel
	Cache     Cache
	Uploader  Uploader
	Templates []canvas.TemplateSource

	Width, Height int
	Brush         canvas.Brush
	Viewport      canvas.Viewport
	StepTimeout   time.Duration

	ExportWidth, ExportHeight int
	Quality                   int
	UploadTimeout             time.Duration

	// Pick returns an index in [0, n). Defaults to a uniform random pick.
	Pick func(n int) int
}

func (o *Options) setDefaults() {
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = canvas.DefaultWidth, canvas.DefaultHeight
	}
	if o.Brush.Width <= 0 {
		o.Brush = canvas.DefaultBrush()
	}
	if o.StepTimeout <= 0 {
		o.StepTimeout = DefaultStepTimeout
	}
	if o.ExportWidth <= 0 || o.ExportHeight <= 0 {
		o.ExportWidth, o.ExportHeight = 1920, 1080
	}
	if o.Quality <= 0 {
		o.Quality = canvas.DefaultQuality
	}
	if o.UploadTimeout <= 0 {
		o.UploadTimeout = 30 * time.Second
	}
	if o.Pick == nil {
		o.Pick = rand.IntN
	}
}

// Controller is the secondary screen state machine. Every transition bumps
// a generation counter; timer callbacks carry the generation they were
// armed in and do nothing once it is stale.
type Controller struct {
	opts Options

	mu       sync.Mutex
	step     Step
	gen      uint64
	timer    clock.Timer
	surface  *canvas.Surface
	template string

	subMu  sync.Mutex
	subs   map[int]func(Step)
	nextID int

	uploads sync.WaitGroup
}

// effect is work collected under the lock and run after it is released.
type effect struct {
	step    Step
	message *handoff.Message
	upload  []byte
}

// New returns a controller on the Start step.
func New(opts Options) *Controller {
	opts.setDefaults()
	return &Controller{
		opts: opts,
		step: StepStart,
		subs: make(map[int]func(Step)),
	}
}

// Step returns the active step.
func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Surface returns the Draw step's canvas, or nil while no template is
// loaded or outside Draw.
func (c *Controller) Surface() *canvas.Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != StepDraw || c.surface == nil || !c.surface.Loaded() {
		return nil
	}
	return c.surface
}

// Template returns the name of the template chosen for the current drawing.
func (c *Controller) Template() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.template
}

// Subscribe registers fn to be called after every step change. The
// returned func removes it.
func (c *Controller) Subscribe(fn func(Step)) func() {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Tap advances Start to Draw and End to Start. It is ignored in Draw, where
// taps are strokes.
func (c *Controller) Tap() {
	c.mu.Lock()
	var fx *effect
	switch c.step {
	case StepStart:
		fx = c.enterDrawLocked()
	case StepEnd:
		fx = c.enterStartLocked(NoteReturned)
	}
	c.mu.Unlock()
	c.apply(fx)
}

// HandlePointer routes a pointer event to the canvas and restarts the
// inactivity timer. It reports whether the canvas changed.
func (c *Controller) HandlePointer(ev canvas.PointerEvent) bool {
	c.mu.Lock()
	if c.step != StepDraw {
		c.mu.Unlock()
		return false
	}
	c.armLocked(c.onTimeout)
	surface := c.surface
	c.mu.Unlock()
	if surface == nil {
		return false
	}
	return surface.HandlePointer(ev)
}

// Undo reverts the last stroke. Only meaningful in Draw.
func (c *Controller) Undo() bool {
	c.mu.Lock()
	if c.step != StepDraw {
		c.mu.Unlock()
		return false
	}
	c.armLocked(c.onTimeout)
	surface := c.surface
	c.mu.Unlock()
	if surface == nil {
		return false
	}
	return surface.Undo()
}

// SetViewport updates the display mapping of the current and later canvases.
func (c *Controller) SetViewport(v canvas.Viewport) {
	c.mu.Lock()
	c.opts.Viewport = v
	if c.surface != nil {
		c.surface.SetViewport(v)
	}
	c.mu.Unlock()
}

// Submit finishes the drawing: export, upload, cache, publish and move to
// End. A failed export skips everything but the step change.
func (c *Controller) Submit() {
	c.mu.Lock()
	if c.step != StepDraw {
		c.mu.Unlock()
		return
	}
	surface := c.surface
	opts := c.opts
	fx := c.enterEndLocked()
	c.mu.Unlock()

	// The step already changed, so the surface is ours alone until Close.
	data, err := exportDrawing(surface, opts)
	if surface != nil {
		surface.Close()
	}
	if err != nil {
		slog.Error("export drawing failed", "error", err)
		c.apply(fx)
		return
	}

	url := dataurl.Encode(canvas.FormatJPEG.MIME(), data)
	if opts.Cache != nil {
		if tier, err := opts.Cache.Put(cache.DrawingKey, []byte(url)); err != nil {
			slog.Warn("cache drawing failed", "error", err)
		} else {
			slog.Debug("cached drawing", "tier", tier, "bytes", len(url))
		}
	}
	m := handoff.NewMessage(handoff.KindDrawingComplete, url, NoteSubmitted, opts.Clock.Now())
	fx.message = &m
	fx.upload = data
	c.apply(fx)
}

// Wait blocks until in-flight uploads finish.
func (c *Controller) Wait() { c.uploads.Wait() }

// Close cancels timers and releases the canvas.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.stopLocked()
	if c.surface != nil {
		c.surface.Close()
		c.surface = nil
	}
}

func exportDrawing(surface *canvas.Surface, opts Options) ([]byte, error) {
	if surface == nil {
		return nil, canvas.ErrNotLoaded
	}
	return surface.ExportResized(opts.ExportWidth, opts.ExportHeight, opts.Quality)
}

func (c *Controller) enterDrawLocked() *effect {
	c.step = StepDraw
	c.gen++
	c.stopLocked()

	surface := canvas.New(canvas.WithViewport(c.opts.Viewport))
	c.surface = surface
	c.template = ""
	if n := len(c.opts.Templates); n > 0 {
		src := c.opts.Templates[c.opts.Pick(n)]
		c.template = src.Name()
		if err := surface.LoadTemplate(src, c.opts.Width, c.opts.Height, c.opts.Brush); err != nil {
			slog.Error("load template failed", "template", src.Name(), "error", err)
		}
	} else {
		slog.Error("no drawing templates configured")
	}

	c.armLocked(c.onTimeout)
	return &effect{step: StepDraw}
}

func (c *Controller) enterEndLocked() *effect {
	c.step = StepEnd
	c.gen++
	c.stopLocked()
	c.surface = nil
	c.armLocked(c.onTimeout)
	return &effect{step: StepEnd}
}

func (c *Controller) enterStartLocked(note string) *effect {
	c.step = StepStart
	c.gen++
	c.stopLocked()
	if c.surface != nil {
		c.surface.Close()
		c.surface = nil
	}
	c.template = ""
	m := handoff.NewMessage(handoff.KindReturnToStart, "", note, c.opts.Clock.Now())
	return &effect{step: StepStart, message: &m}
}

// armLocked replaces the step timer with a fresh one for the current
// generation.
func (c *Controller) armLocked(fire func(gen uint64)) {
	c.stopLocked()
	gen := c.gen
	c.timer = c.opts.Clock.AfterFunc(c.opts.StepTimeout, func() { fire(gen) })
}

func (c *Controller) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) onTimeout(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.step == StepStart {
		c.mu.Unlock()
		return
	}
	slog.Info("step timed out", "step", c.step)
	fx := c.enterStartLocked(NoteTimedOut)
	c.mu.Unlock()
	c.apply(fx)
}

func (c *Controller) apply(fx *effect) {
	if fx == nil {
		return
	}
	if fx.upload != nil && c.opts.Uploader != nil {
		c.uploads.Add(1)
		go c.upload(fx.upload)
	}
	if fx.message != nil && c.opts.Channel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.opts.Channel.Publish(ctx, *fx.message); err != nil {
			slog.Warn("publish hand-off message failed", "kind", fx.message.Kind, "error", err)
		}
		cancel()
	}

	c.subMu.Lock()
	subs := make([]func(Step), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()
	for _, fn := range subs {
		fn(fx.step)
	}
}

func (c *Controller) upload(data []byte) {
	defer c.uploads.Done()
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.UploadTimeout)
	defer cancel()
	stored, err := c.opts.Uploader.Upload(ctx, "drawing.jpg", canvas.FormatJPEG.MIME(), data)
	if err != nil {
		slog.Warn("upload drawing failed", "error", err)
		return
	}
	slog.Info("uploaded drawing", "filename", stored.Filename, "size", stored.Size)
}
