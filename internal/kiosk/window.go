// Package kiosk runs the main and secondary kiosk windows on top of shiny.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"
	"golang.org/x/sync/errgroup"

	"github.com/example/doodlekiosk/internal/screens"
)

// ProgramTitle prefixes every window title.
const ProgramTitle = "Doodle Kiosk"

// View is the content of one kiosk window. Draw and the input methods are
// called from the window's event goroutine.
type View interface {
	Title() string
	Draw(dst *image.RGBA)
	Mouse(e mouse.Event)
	// Key reports whether the window should close.
	Key(e key.Event) bool
	// Animating reports whether frames should be painted continuously.
	Animating() bool
	// Bind registers the repaint callback and returns a function that
	// removes it.
	Bind(repaint func()) func()
}

// Window places a View on a monitor.
type Window struct {
	View      View
	Placement image.Rectangle
	// Frame is the repaint interval while the view is animating.
	Frame time.Duration
}

type closeEvent struct{}

// Run opens every window and blocks until one of them is closed or ctx is
// cancelled, at which point all windows close. It must be called from the
// main goroutine.
func Run(ctx context.Context, windows ...Window) error {
	if len(windows) == 0 {
		return errors.New("no windows to run")
	}
	var runErr error
	driver.Main(func(s screen.Screen) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		g, ctx := errgroup.WithContext(ctx)
		for _, win := range windows {
			g.Go(func() error {
				defer cancel()
				return runWindow(ctx, s, win)
			})
		}
		runErr = g.Wait()
	})
	return runErr
}

func runWindow(ctx context.Context, s screen.Screen, win Window) error {
	sz := win.Placement.Size()
	if sz.X <= 0 || sz.Y <= 0 {
		sz = image.Pt(1280, 720)
	}
	title := win.View.Title()
	w, err := s.NewWindow(&screen.NewWindowOptions{Width: sz.X, Height: sz.Y, Title: title})
	if err != nil {
		return fmt.Errorf("new window %q: %w", title, err)
	}
	defer w.Release()

	var pending atomic.Bool
	repaint := func() {
		if pending.CompareAndSwap(false, true) {
			w.Send(paint.Event{})
		}
	}
	unbind := win.View.Bind(repaint)
	defer unbind()

	done := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(done)
		wg.Wait()
	}()
	wg.Add(2)
	go func() {
		defer wg.Done()
		place(done, title, win.Placement)
	}()
	go func() {
		defer wg.Done()
		frame := win.Frame
		if frame <= 0 {
			frame = 33 * time.Millisecond
		}
		t := time.NewTicker(frame)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				w.Send(closeEvent{})
				return
			case <-done:
				return
			case <-t.C:
				if win.View.Animating() {
					repaint()
				}
			}
		}
	}()

	var buf screen.Buffer
	defer func() {
		if buf != nil {
			buf.Release()
		}
	}()
	for {
		switch e := w.NextEvent().(type) {
		case closeEvent:
			return nil
		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				return nil
			}
		case size.Event:
			if next := e.Size(); next.X > 0 && next.Y > 0 {
				sz = next
			}
			repaint()
		case paint.Event:
			pending.Store(false)
			if buf == nil || buf.Size() != sz {
				if buf != nil {
					buf.Release()
				}
				if buf, err = s.NewBuffer(sz); err != nil {
					return fmt.Errorf("new buffer: %w", err)
				}
			}
			win.View.Draw(buf.RGBA())
			w.Upload(image.Point{}, buf, buf.Bounds())
			w.Publish()
		case mouse.Event:
			win.View.Mouse(e)
		case key.Event:
			if win.View.Key(e) {
				return nil
			}
		case error:
			slog.Error("window event", "window", title, "error", e)
		}
	}
}

// place moves the window onto its monitor once the window manager has
// mapped it.
func place(done <-chan struct{}, title string, rect image.Rectangle) {
	if rect.Empty() {
		return
	}
	for attempt := 0; attempt < 30; attempt++ {
		select {
		case <-done:
			return
		case <-time.After(100 * time.Millisecond):
		}
		err := screens.MoveWindow(title, rect)
		if err == nil {
			slog.Debug("window placed", "window", title, "rect", rect)
			return
		}
		if !errors.Is(err, screens.ErrWindowNotFound) {
			slog.Debug("window placement unavailable", "window", title, "error", err)
			return
		}
	}
	slog.Warn("window not found for placement", "window", title)
}

func keyRune(e key.Event) rune {
	if e.Direction != key.DirPress {
		return 0
	}
	if e.Code == key.CodeEscape {
		return 0x1b
	}
	return e.Rune
}
