package kiosk

import (
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/mouse"

	"github.com/example/doodlekiosk/internal/canvas"
	"github.com/example/doodlekiosk/internal/clock"
	"github.com/example/doodlekiosk/internal/display"
	"github.com/example/doodlekiosk/internal/render"
	"github.com/example/doodlekiosk/internal/session"
)

const (
	// StartInterval and StartTransition time the start screen crossfade.
	StartInterval   = 5 * time.Second
	StartTransition = time.Second

	barFraction = 7
)

var (
	paperGrey   = color.RGBA{235, 235, 235, 255}
	undoColor   = color.RGBA{90, 90, 90, 255}
	nextColor   = color.RGBA{30, 140, 70, 255}
	endBG       = color.RGBA{30, 140, 70, 255}
	startPrompt = "tap to start drawing"
	endPrompt   = "thank you! tap to draw again"
	loadingText = "loading..."
)

// SecondaryView is the visitor facing touch screen: the start screen, the
// drawing canvas with its buttons, and the end screen.
type SecondaryView struct {
	sess   *session.Controller
	starts []image.Image
	fader  *display.Crossfader

	mu       sync.Mutex
	repaint  func()
	size     image.Point
	canvas   image.Rectangle
	buttons  []*CacheButton
	pressed  *CacheButton
	drawing  bool
	unsubscr func()
}

// NewSecondaryView builds the view over sess. starts are the start screen
// images, crossfaded on clk.
func NewSecondaryView(sess *session.Controller, starts []image.Image, clk clock.Clock) *SecondaryView {
	v := &SecondaryView{sess: sess, starts: starts}
	v.fader = display.NewCrossfader(clk, StartInterval, StartTransition, v.requestPaint)
	v.buttons = []*CacheButton{
		NewLabelButton("Undo", undoColor, func() { v.sess.Undo() }),
		NewLabelButton("Next", nextColor, v.sess.Submit),
	}
	v.unsubscr = sess.Subscribe(v.stepChanged)
	v.stepChanged(sess.Step())
	return v
}

func (v *SecondaryView) Title() string { return ProgramTitle + " - secondary" }

func (v *SecondaryView) Bind(repaint func()) func() {
	v.mu.Lock()
	v.repaint = repaint
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		v.repaint = nil
		v.mu.Unlock()
	}
}

// Close stops the start screen fader and detaches from the session.
func (v *SecondaryView) Close() {
	v.fader.Stop()
	if v.unsubscr != nil {
		v.unsubscr()
	}
}

func (v *SecondaryView) Animating() bool {
	return v.sess.Step() == session.StepStart && v.fader.State().Transitioning
}

func (v *SecondaryView) requestPaint() {
	v.mu.Lock()
	fn := v.repaint
	v.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (v *SecondaryView) stepChanged(step session.Step) {
	if step == session.StepStart {
		v.fader.Reset(len(v.starts))
	} else {
		v.fader.Stop()
	}
	v.mu.Lock()
	v.drawing = false
	v.pressed = nil
	v.mu.Unlock()
	v.requestPaint()
}

// layout splits the window into the canvas area and the button bar, and
// tells the session where the surface is shown.
func (v *SecondaryView) layout(size image.Point) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if size == v.size {
		return
	}
	v.size = size
	bar := size.Y / barFraction
	area := image.Rect(0, 0, size.X, size.Y-bar)
	v.canvas = area
	half := size.X / 2
	v.buttons[0].SetRect(image.Rect(0, size.Y-bar, half, size.Y))
	v.buttons[1].SetRect(image.Rect(half, size.Y-bar, size.X, size.Y))
}

func (v *SecondaryView) Draw(dst *image.RGBA) {
	b := dst.Bounds()
	v.layout(b.Size())
	scale := max(2, b.Dy()/300)

	switch v.sess.Step() {
	case session.StepStart:
		render.Fill(dst, b, color.White)
		v.drawStart(dst)
		render.Caption(dst, image.Pt(b.Dx()/2, b.Dy()*7/8), startPrompt, captionFG, captionBG, scale)
	case session.StepDraw:
		v.drawCanvas(dst, scale)
	case session.StepEnd:
		render.Fill(dst, b, endBG)
		render.Text(dst, center(b), endPrompt, color.White, scale*2)
	}
}

func (v *SecondaryView) drawStart(dst *image.RGBA) {
	if len(v.starts) == 0 {
		return
	}
	st := v.fader.State()
	cur := v.starts[st.Current%len(v.starts)]
	if !st.Transitioning {
		render.Cover(dst, dst.Bounds(), cur, draw.Src)
		return
	}
	render.Crossfade(dst, dst.Bounds(), cur, v.starts[st.Next%len(v.starts)], st.Opacity)
}

func (v *SecondaryView) drawCanvas(dst *image.RGBA, scale int) {
	render.Fill(dst, dst.Bounds(), paperGrey)
	v.mu.Lock()
	area := v.canvas
	buttons := v.buttons
	pressed := v.pressed
	v.mu.Unlock()

	surface := v.sess.Surface()
	if surface == nil {
		render.Text(dst, center(area), loadingText, color.Black, scale)
	} else {
		res := surface.Resolution()
		rect := render.ContainRect(res, area)
		v.sess.SetViewport(canvas.Viewport{Origin: rect.Min, Size: rect.Size()})
		if snap := surface.Snapshot(); snap != nil {
			render.Cover(dst, rect, snap, draw.Src)
		}
		render.Outline(dst, rect, color.RGBA{180, 180, 180, 255}, 2)
	}
	for i, btn := range buttons {
		state := StateDefault
		if btn == pressed {
			state = StatePressed
		}
		if i == 0 && (surface == nil || !surface.CanUndo()) {
			state = StateDisabled
		}
		btn.Draw(dst, state)
	}
}

// Mouse routes touches: a press anywhere on the start or end screen taps,
// presses on the canvas draw, and buttons fire on release.
func (v *SecondaryView) Mouse(e mouse.Event) {
	p := image.Pt(int(e.X), int(e.Y))
	switch v.sess.Step() {
	case session.StepStart, session.StepEnd:
		if e.Direction == mouse.DirPress {
			v.sess.Tap()
		}
		return
	}

	v.mu.Lock()
	drawing := v.drawing
	var hit *CacheButton
	for _, btn := range v.buttons {
		if p.In(btn.Rect()) {
			hit = btn
		}
	}
	v.mu.Unlock()

	pos := canvas.Pt(float64(e.X), float64(e.Y))
	switch e.Direction {
	case mouse.DirPress:
		if hit != nil {
			v.setPressed(hit)
			return
		}
		v.setDrawing(true)
		v.sess.HandlePointer(canvas.PointerEvent{Kind: canvas.PointerPress, Pos: pos})
	case mouse.DirNone:
		if drawing {
			v.sess.HandlePointer(canvas.PointerEvent{Kind: canvas.PointerMove, Pos: pos})
		}
	case mouse.DirRelease:
		if drawing {
			v.setDrawing(false)
			v.sess.HandlePointer(canvas.PointerEvent{Kind: canvas.PointerRelease, Pos: pos})
			break
		}
		v.mu.Lock()
		pressed := v.pressed
		v.pressed = nil
		v.mu.Unlock()
		if pressed != nil && pressed == hit {
			pressed.Activate()
		}
	}
	v.requestPaint()
}

func (v *SecondaryView) setPressed(b *CacheButton) {
	v.mu.Lock()
	v.pressed = b
	v.mu.Unlock()
	v.requestPaint()
}

func (v *SecondaryView) setDrawing(on bool) {
	v.mu.Lock()
	v.drawing = on
	v.mu.Unlock()
}

// Key supports a keyboard fallback: Enter taps or submits, u undoes,
// Escape closes.
func (v *SecondaryView) Key(e key.Event) bool {
	if e.Direction == key.DirPress && e.Code == key.CodeReturnEnter {
		if v.sess.Step() == session.StepDraw {
			v.sess.Submit()
		} else {
			v.sess.Tap()
		}
		return false
	}
	switch keyRune(e) {
	case 0x1b:
		return true
	case 'u':
		v.sess.Undo()
		v.requestPaint()
	}
	return false
}
