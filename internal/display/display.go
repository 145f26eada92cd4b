// Package display is the main screen's background state machine: random
// colours while idle, the latest drawing after a hand-off, and a crossfading
// carousel of stored drawings otherwise.
package display

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/example/doodlekiosk/internal/cache"
	"github.com/example/doodlekiosk/internal/clock"
	"github.com/example/doodlekiosk/internal/dataurl"
	"github.com/example/doodlekiosk/internal/handoff"
	"github.com/example/doodlekiosk/internal/palette"
	"github.com/example/doodlekiosk/internal/store"
)

// Mode is the main screen background.
type Mode int

const (
	ModeColorCycle Mode = iota
	ModeSingleDrawing
	ModeCarousel
)

func (m Mode) String() string {
	switch m {
	case ModeColorCycle:
		return "color-cycle"
	case ModeSingleDrawing:
		return "single-drawing"
	case ModeCarousel:
		return "carousel"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Captions shown in the top-left overlay.
const (
	CaptionShowcase = "drawing showcase"
	captionColors   = "colour changes: %d"
)

// Lister fetches the stored drawings.
type Lister interface {
	List(ctx context.Context) ([]store.Image, error)
}

// Taker removes and returns a cached value.
type Taker interface {
	Take(key string) ([]byte, error)
}

// Options configures a Controller. Zero durations select the defaults.
type Options struct {
	Clock   clock.Clock
	Palette *palette.Palette
	Lister  Lister
	Channel handoff.Channel
	Cache   Taker

	CycleInterval    time.Duration
	CarouselInterval time.Duration
	Transition       time.Duration
	MessageDuration  time.Duration
	RefreshInterval  time.Duration
	ListTimeout      time.Duration

	// Pick returns an index in [0, n). Defaults to a uniform random pick.
	Pick func(n int) int
}

func (o *Options) setDefaults() {
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	if o.Palette == nil {
		o.Palette = palette.Default()
	}
	def := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	def(&o.CycleInterval, 5*time.Second)
	def(&o.CarouselInterval, 5*time.Second)
	def(&o.Transition, time.Second)
	def(&o.MessageDuration, 3*time.Second)
	def(&o.RefreshInterval, 30*time.Second)
	def(&o.ListTimeout, 10*time.Second)
	if o.Pick == nil {
		o.Pick = rand.IntN
	}
}

// State is an immutable snapshot for the renderer.
type State struct {
	Mode         Mode
	Color        color.RGBA
	ColorChanges int
	Drawing      image.Image
	Images       []store.Image
	Fade         FadeState
	ShowMessage  bool
	Message      string
}

// Caption is the overlay text for the state.
func (s State) Caption() string {
	if s.Mode == ModeColorCycle {
		return fmt.Sprintf(captionColors, s.ColorChanges)
	}
	return CaptionShowcase
}

// Controller owns the main screen mode. Timers are tagged with the mode
// generation and ignored once a later transition has happened.
type Controller struct {
	opts  Options
	fader *Crossfader

	mu        sync.Mutex
	mode      Mode
	gen       uint64
	color     color.RGBA
	changes   int
	drawing   image.Image
	images    []store.Image
	message   string
	showMsg   bool
	msgTimer  clock.Timer
	msgGen    uint64
	modeTimer clock.Timer
	stopObs   func()

	subMu sync.Mutex
	subs  []func()

	// async runs list fetches off the caller's goroutine.
	async func(func())
}

// New returns a controller in ColorCycle with no timers armed. Call Start
// to pick up pending drawings and attach to the channel.
func New(opts Options) *Controller {
	opts.setDefaults()
	c := &Controller{
		opts:  opts,
		async: func(f func()) { go f() },
	}
	c.fader = NewCrossfader(opts.Clock, opts.CarouselInterval, opts.Transition, c.notify)
	return c
}

// Start enters the initial mode and observes the channel until ctx ends or
// Stop is called. A drawing left in the cache is shown first; otherwise the
// carousel is loaded.
func (c *Controller) Start(ctx context.Context) error {
	if !c.pickupCached() {
		c.EnterCarousel()
	}
	if c.opts.Channel == nil {
		return nil
	}
	stop, err := c.opts.Channel.Observe(ctx, c.HandleMessage)
	if err != nil {
		return fmt.Errorf("observe hand-off channel: %w", err)
	}
	c.mu.Lock()
	c.stopObs = stop
	c.mu.Unlock()
	return nil
}

// Stop detaches from the channel and cancels every timer.
func (c *Controller) Stop() {
	c.mu.Lock()
	stop := c.stopObs
	c.stopObs = nil
	c.gen++
	c.stopTimersLocked()
	c.stopMessageLocked()
	c.mu.Unlock()
	c.fader.Stop()
	if stop != nil {
		stop()
	}
}

// Subscribe registers fn to be called whenever the state changes.
func (c *Controller) Subscribe(fn func()) {
	c.subMu.Lock()
	c.subs = append(c.subs, fn)
	c.subMu.Unlock()
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	st := State{
		Mode:         c.mode,
		Color:        c.color,
		ColorChanges: c.changes,
		Drawing:      c.drawing,
		Images:       slices.Clone(c.images),
		ShowMessage:  c.showMsg,
		Message:      c.message,
	}
	c.mu.Unlock()
	if st.Mode == ModeCarousel {
		st.Fade = c.fader.State()
	}
	return st
}

// HandleMessage applies a hand-off message.
func (c *Controller) HandleMessage(m handoff.Message) {
	slog.Info("hand-off message received", "kind", m.Kind, "note", m.Note)
	switch m.Kind {
	case handoff.KindDrawingComplete:
		if m.ImageData == "" {
			c.flashMessage(m.Note)
			return
		}
		img, err := dataurl.DecodeImage(m.ImageData)
		if err != nil {
			slog.Warn("discarding undecodable drawing", "error", err)
			c.flashMessage(m.Note)
			return
		}
		c.ShowDrawing(img, m.Note)
	case handoff.KindReturnToStart:
		c.EnterCarousel()
	}
}

// ShowDrawing switches to SingleDrawing with img and flashes note.
func (c *Controller) ShowDrawing(img image.Image, note string) {
	c.mu.Lock()
	c.enterLocked(ModeSingleDrawing)
	c.drawing = img
	c.images = nil
	c.flashLocked(note)
	c.mu.Unlock()
	c.fader.Stop()
	c.notify()
}

// EnterColorCycle switches to random colours, changing immediately and then
// every cycle interval.
func (c *Controller) EnterColorCycle() {
	c.mu.Lock()
	c.enterColorCycleLocked()
	c.mu.Unlock()
	c.fader.Stop()
	c.notify()
}

// EnterCarousel switches to the carousel and fetches the image list. An
// empty list or a failed fetch falls back to ColorCycle.
func (c *Controller) EnterCarousel() {
	c.mu.Lock()
	c.enterLocked(ModeCarousel)
	c.drawing = nil
	c.images = nil
	gen := c.gen
	c.mu.Unlock()
	c.fader.Stop()
	c.notify()
	c.async(func() { c.refresh(gen) })
}

// Refresh re-fetches the carousel list now. It does nothing outside the
// carousel.
func (c *Controller) Refresh() {
	c.mu.Lock()
	if c.mode != ModeCarousel {
		c.mu.Unlock()
		return
	}
	gen := c.gen
	c.mu.Unlock()
	c.async(func() { c.refresh(gen) })
}

// Current returns what the main screen is showing as an image: the drawing,
// or the carousel item's descriptor when in the carousel.
func (c *Controller) Current() (image.Image, *store.Image) {
	st := c.State()
	switch st.Mode {
	case ModeSingleDrawing:
		return st.Drawing, nil
	case ModeCarousel:
		if st.Fade.Current < len(st.Images) {
			img := st.Images[st.Fade.Current]
			return nil, &img
		}
	}
	return nil, nil
}

func (c *Controller) pickupCached() bool {
	if c.opts.Cache == nil {
		return false
	}
	data, err := c.opts.Cache.Take(cache.DrawingKey)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			slog.Warn("read cached drawing failed", "error", err)
		}
		return false
	}
	img, err := dataurl.DecodeImage(string(data))
	if err != nil {
		slog.Warn("discarding undecodable cached drawing", "error", err)
		return false
	}
	slog.Info("showing drawing left in cache")
	c.ShowDrawing(img, CaptionShowcase)
	return true
}

func (c *Controller) refresh(gen uint64) {
	var images []store.Image
	var err error
	if c.opts.Lister == nil {
		err = errors.New("no image store configured")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.ListTimeout)
		images, err = c.opts.Lister.List(ctx)
		cancel()
	}

	c.mu.Lock()
	if gen != c.gen || c.mode != ModeCarousel {
		c.mu.Unlock()
		return
	}
	if err != nil || len(images) == 0 {
		if err != nil {
			slog.Warn("fetch carousel images failed", "error", err)
		} else {
			slog.Info("no stored drawings, cycling colours")
		}
		c.enterColorCycleLocked()
		c.mu.Unlock()
		c.fader.Stop()
		c.notify()
		return
	}
	changed := !sameImages(c.images, images)
	if changed {
		c.images = images
	}
	c.armLocked(c.opts.RefreshInterval, func() { c.refresh(gen) }, true)
	c.mu.Unlock()
	if changed {
		slog.Debug("carousel list updated", "count", len(images))
		c.fader.Reset(len(images))
	}
}

func (c *Controller) enterLocked(mode Mode) {
	c.mode = mode
	c.gen++
	c.stopTimersLocked()
}

func (c *Controller) enterColorCycleLocked() {
	c.enterLocked(ModeColorCycle)
	c.drawing = nil
	c.images = nil
	c.changeColorLocked()
	gen := c.gen
	var tick func()
	tick = func() {
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.changeColorLocked()
		c.armLocked(c.opts.CycleInterval, tick, false)
		c.mu.Unlock()
		c.notify()
	}
	c.armLocked(c.opts.CycleInterval, tick, false)
}

func (c *Controller) changeColorLocked() {
	colors := c.opts.Palette.Colors()
	if len(colors) == 0 {
		return
	}
	c.color = colors[c.opts.Pick(len(colors))]
	c.changes++
}

// armLocked replaces the mode timer. When async is set fn runs through
// c.async so a slow fetch never holds up the clock.
func (c *Controller) armLocked(d time.Duration, fn func(), async bool) {
	if c.modeTimer != nil {
		c.modeTimer.Stop()
	}
	if async {
		c.modeTimer = c.opts.Clock.AfterFunc(d, func() { c.async(fn) })
		return
	}
	c.modeTimer = c.opts.Clock.AfterFunc(d, fn)
}

func (c *Controller) stopTimersLocked() {
	if c.modeTimer != nil {
		c.modeTimer.Stop()
		c.modeTimer = nil
	}
}

func (c *Controller) flashMessage(note string) {
	c.mu.Lock()
	c.flashLocked(note)
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) flashLocked(note string) {
	c.stopMessageLocked()
	c.message = note
	c.showMsg = true
	gen := c.msgGen
	c.msgTimer = c.opts.Clock.AfterFunc(c.opts.MessageDuration, func() {
		c.mu.Lock()
		if gen != c.msgGen {
			c.mu.Unlock()
			return
		}
		c.showMsg = false
		c.msgTimer = nil
		c.mu.Unlock()
		c.notify()
	})
}

func (c *Controller) stopMessageLocked() {
	c.msgGen++
	if c.msgTimer != nil {
		c.msgTimer.Stop()
		c.msgTimer = nil
	}
}

func (c *Controller) notify() {
	c.subMu.Lock()
	subs := slices.Clone(c.subs)
	c.subMu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func sameImages(a, b []store.Image) bool {
	return slices.EqualFunc(a, b, func(x, y store.Image) bool {
		return x.Filename == y.Filename && x.URL == y.URL
	})
}
