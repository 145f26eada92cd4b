package kiosk

import (
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"sync"

	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/mouse"

	"github.com/example/doodlekiosk/internal/display"
	"github.com/example/doodlekiosk/internal/notify"
	"github.com/example/doodlekiosk/internal/render"
)

var (
	captionFG = color.RGBA{255, 255, 255, 255}
	captionBG = color.RGBA{20, 20, 20, 200}
	messageBG = color.RGBA{40, 90, 200, 230}
)

// MainView renders the main display controller full screen.
type MainView struct {
	ctrl     *display.Controller
	gallery  *display.Gallery
	notifier *notify.Notifier
	copy     func(image.Image) error

	mu       sync.Mutex
	repaint  func()
	lastShow image.Image
}

// NewMainView wires ctrl to a gallery backed by fetcher. notifier may be nil.
func NewMainView(ctrl *display.Controller, fetcher display.Fetcher, notifier *notify.Notifier, copyImage func(image.Image) error) *MainView {
	v := &MainView{ctrl: ctrl, notifier: notifier, copy: copyImage}
	v.gallery = display.NewGallery(fetcher, v.requestPaint)
	ctrl.Subscribe(v.changed)
	return v
}

func (v *MainView) Title() string { return ProgramTitle + " - main" }

func (v *MainView) Bind(repaint func()) func() {
	v.mu.Lock()
	v.repaint = repaint
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		v.repaint = nil
		v.mu.Unlock()
	}
}

func (v *MainView) Animating() bool {
	st := v.ctrl.State()
	return st.Mode == display.ModeCarousel && st.Fade.Transitioning
}

func (v *MainView) requestPaint() {
	v.mu.Lock()
	fn := v.repaint
	v.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// changed runs on every controller change. A newly shown drawing is
// announced once.
func (v *MainView) changed() {
	st := v.ctrl.State()
	v.mu.Lock()
	fresh := st.Mode == display.ModeSingleDrawing && st.Drawing != nil && st.Drawing != v.lastShow
	if st.Mode == display.ModeSingleDrawing {
		v.lastShow = st.Drawing
	} else {
		v.lastShow = nil
	}
	v.mu.Unlock()
	if st.Mode == display.ModeCarousel {
		urls := make([]string, len(st.Images))
		for i, img := range st.Images {
			urls[i] = img.URL
		}
		v.gallery.Retain(urls)
	}
	if fresh {
		go v.notifier.Received(st.Message, st.Drawing)
	}
	v.requestPaint()
}

func (v *MainView) Draw(dst *image.RGBA) {
	b := dst.Bounds()
	st := v.ctrl.State()
	switch st.Mode {
	case display.ModeColorCycle:
		render.Fill(dst, b, st.Color)
	case display.ModeSingleDrawing:
		render.Fill(dst, b, color.Black)
		if st.Drawing != nil {
			render.Cover(dst, b, st.Drawing, draw.Src)
		}
	case display.ModeCarousel:
		render.Fill(dst, b, color.Black)
		v.drawCarousel(dst, st)
	}

	scale := max(2, b.Dy()/270)
	bottom := image.Pt(b.Min.X+b.Dx()/2, b.Max.Y-render.TextSize("x", scale).Y*2)
	render.Caption(dst, bottom, st.Caption(), captionFG, captionBG, scale)
	if st.ShowMessage && st.Message != "" {
		render.Caption(dst, center(b), st.Message, captionFG, messageBG, scale*2)
	}
}

func (v *MainView) drawCarousel(dst *image.RGBA, st display.State) {
	if len(st.Images) == 0 {
		return
	}
	fade := st.Fade
	cur, _ := v.gallery.Get(st.Images[fade.Current%len(st.Images)].URL)
	if !fade.Transitioning {
		if cur != nil {
			render.Cover(dst, dst.Bounds(), cur, draw.Src)
		}
		return
	}
	next, _ := v.gallery.Get(st.Images[fade.Next%len(st.Images)].URL)
	render.Crossfade(dst, dst.Bounds(), cur, next, fade.Opacity)
}

// Mouse is ignored on the main display.
func (v *MainView) Mouse(mouse.Event) {}

// Key handles the operator shortcuts: c copies the shown image, r reloads
// the carousel, q or Escape closes the kiosk.
func (v *MainView) Key(e key.Event) bool {
	switch keyRune(e) {
	case 'q', 0x1b:
		return true
	case 'r':
		v.ctrl.Refresh()
	case 'c':
		v.copyCurrent()
	}
	return false
}

func (v *MainView) copyCurrent() {
	img, desc := v.ctrl.Current()
	name := "drawing"
	if img == nil && desc != nil {
		img, _ = v.gallery.Get(desc.URL)
		name = desc.Filename
	}
	if img == nil {
		slog.Info("nothing to copy")
		return
	}
	if v.copy == nil {
		return
	}
	if err := v.copy(img); err != nil {
		slog.Warn("copy to clipboard failed", "error", err)
		return
	}
	slog.Info("image copied to clipboard", "name", name)
	v.notifier.Copied(name)
}
