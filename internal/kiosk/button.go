package kiosk

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/example/doodlekiosk/internal/render"
)

// ButtonState describes the visual state of a button.
type ButtonState int

const (
	StateDefault ButtonState = iota
	StatePressed
	StateDisabled
)

// Button is a touch target drawn into the window buffer.
type Button interface {
	Draw(dst *image.RGBA, state ButtonState)
	Rect() image.Rectangle
	SetRect(r image.Rectangle)
	Activate()
}

// CacheButton wraps another Button and caches its rendered states so large
// kiosk buttons are not re-rendered every frame.
type CacheButton struct {
	Button
	cache [3]*image.RGBA
}

var _ Button = (*CacheButton)(nil)

func (cb *CacheButton) Draw(dst *image.RGBA, state ButtonState) {
	rect := cb.Button.Rect()
	if rect.Empty() {
		return
	}
	if cb.cache[state] == nil {
		img := image.NewRGBA(rect)
		cb.Button.Draw(img, state)
		cb.cache[state] = img
	}
	draw.Draw(dst, rect, cb.cache[state], rect.Min, draw.Over)
}

func (cb *CacheButton) SetRect(r image.Rectangle) {
	if r != cb.Button.Rect() {
		cb.Button.SetRect(r)
		cb.cache = [3]*image.RGBA{}
	}
}

// LabelButton is a rounded panel with a centred label.
type LabelButton struct {
	Label  string
	Fill   color.RGBA
	Scale  int
	action func()
	rect   image.Rectangle
}

// NewLabelButton returns a cached button that runs action when activated.
func NewLabelButton(label string, fill color.RGBA, action func()) *CacheButton {
	return &CacheButton{Button: &LabelButton{Label: label, Fill: fill, Scale: 3, action: action}}
}

func (b *LabelButton) Draw(dst *image.RGBA, state ButtonState) {
	fill := b.Fill
	switch state {
	case StatePressed:
		fill = shade(fill, 0.8)
	case StateDisabled:
		fill = color.RGBA{170, 170, 170, 255}
	}
	inner := b.rect.Inset(6)
	render.Panel(dst, inner, fill, render.ShadowOptions{Radius: 4, Offset: image.Pt(2, 3), Opacity: 0.35})
	render.Text(dst, center(inner), b.Label, color.White, b.Scale)
}

func (b *LabelButton) Rect() image.Rectangle     { return b.rect }
func (b *LabelButton) SetRect(r image.Rectangle) { b.rect = r }

func (b *LabelButton) Activate() {
	if b.action != nil {
		b.action()
	}
}

func shade(c color.RGBA, f float64) color.RGBA {
	return color.RGBA{uint8(float64(c.R) * f), uint8(float64(c.G) * f), uint8(float64(c.B) * f), c.A}
}

func center(r image.Rectangle) image.Point {
	return image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
}
