package display

import (
	"sync"
	"time"

	"github.com/example/doodlekiosk/internal/clock"
)

// FadeState is a snapshot of a Crossfader.
type FadeState struct {
	Count         int
	Current       int
	Next          int
	Transitioning bool
	// Opacity of the incoming item, 0 to 1. Only meaningful while
	// Transitioning.
	Opacity float64
}

// Crossfader steps through Count items: every interval it starts a fade to
// the next item and, after duration, makes that item current. It is shared
// by the carousel and the start screen.
type Crossfader struct {
	clk      clock.Clock
	interval time.Duration
	duration time.Duration
	onChange func()

	mu            sync.Mutex
	count         int
	current       int
	transitioning bool
	started       time.Time
	gen           uint64
	timers        []clock.Timer
}

// NewCrossfader returns a stopped crossfader. onChange, if set, is called
// outside the lock whenever the visible state changes.
func NewCrossfader(clk clock.Clock, interval, duration time.Duration, onChange func()) *Crossfader {
	if duration >= interval {
		duration = interval / 2
	}
	return &Crossfader{clk: clk, interval: interval, duration: duration, onChange: onChange}
}

// Reset starts over at item 0 of count items. Any pending fade or advance
// belongs to the old list and is cancelled. With fewer than two items
// nothing is scheduled.
func (f *Crossfader) Reset(count int) {
	f.mu.Lock()
	f.cancelLocked()
	f.count = count
	f.current = 0
	f.transitioning = false
	if count > 1 {
		f.scheduleLocked(f.gen)
	}
	f.mu.Unlock()
	f.changed()
}

// Stop cancels all timers and empties the fader.
func (f *Crossfader) Stop() {
	f.mu.Lock()
	f.cancelLocked()
	f.count = 0
	f.current = 0
	f.transitioning = false
	f.mu.Unlock()
}

// State returns the current snapshot, with the fade opacity taken from the
// clock.
func (f *Crossfader) State() FadeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := FadeState{Count: f.count, Current: f.current, Next: f.current, Transitioning: f.transitioning}
	if f.count > 0 {
		st.Next = (f.current + 1) % f.count
	}
	if f.transitioning {
		st.Opacity = 1
		if f.duration > 0 {
			st.Opacity = float64(f.clk.Now().Sub(f.started)) / float64(f.duration)
			st.Opacity = min(max(st.Opacity, 0), 1)
		}
	}
	return st
}

func (f *Crossfader) cancelLocked() {
	f.gen++
	for _, t := range f.timers {
		t.Stop()
	}
	f.timers = f.timers[:0]
}

func (f *Crossfader) scheduleLocked(gen uint64) {
	f.timers = append(f.timers[:0], f.clk.AfterFunc(f.interval, func() { f.begin(gen) }))
}

func (f *Crossfader) begin(gen uint64) {
	f.mu.Lock()
	if gen != f.gen || f.count < 2 {
		f.mu.Unlock()
		return
	}
	f.transitioning = true
	f.started = f.clk.Now()
	f.scheduleLocked(gen)
	f.timers = append(f.timers, f.clk.AfterFunc(f.duration, func() { f.finish(gen) }))
	f.mu.Unlock()
	f.changed()
}

func (f *Crossfader) finish(gen uint64) {
	f.mu.Lock()
	if gen != f.gen || !f.transitioning {
		f.mu.Unlock()
		return
	}
	f.current = (f.current + 1) % f.count
	f.transitioning = false
	f.mu.Unlock()
	f.changed()
}

func (f *Crossfader) changed() {
	if f.onChange != nil {
		f.onChange()
	}
}
