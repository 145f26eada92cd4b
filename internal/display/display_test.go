package display

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/example/doodlekiosk/internal/cache"
	"github.com/example/doodlekiosk/internal/clock"
	"github.com/example/doodlekiosk/internal/dataurl"
	"github.com/example/doodlekiosk/internal/handoff"
	"github.com/example/doodlekiosk/internal/palette"
	"github.com/example/doodlekiosk/internal/store"
)

type fakeLister struct {
	mu     sync.Mutex
	images []store.Image
	err    error
	calls  int
}

func (l *fakeLister) List(context.Context) ([]store.Image, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.images, l.err
}

func (l *fakeLister) set(images []store.Image, err error) {
	l.mu.Lock()
	l.images, l.err = images, err
	l.mu.Unlock()
}

type oneShotCache struct{ data []byte }

func (c *oneShotCache) Take(string) ([]byte, error) {
	if c.data == nil {
		return nil, cache.ErrNotFound
	}
	d := c.data
	c.data = nil
	return d, nil
}

func images(names ...string) []store.Image {
	out := make([]store.Image, len(names))
	for i, n := range names {
		out[i] = store.Image{Filename: n, URL: "http://store/images/" + n}
	}
	return out
}

func pngDataURL(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatal(err)
	}
	return dataurl.Encode("image/png", buf.Bytes())
}

func newController(t *testing.T, lister *fakeLister, opts Options) (*Controller, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Unix(1700000000, 0))
	opts.Clock = clk
	opts.Lister = lister
	if opts.Pick == nil {
		n := 0
		opts.Pick = func(k int) int { n++; return n % k }
	}
	c := New(opts)
	c.async = func(f func()) { f() }
	t.Cleanup(c.Stop)
	return c, clk
}

func TestEmptyStoreFallsBackToColorCycle(t *testing.T) {
	lister := &fakeLister{}
	c, clk := newController(t, lister, Options{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	st := c.State()
	if st.Mode != ModeColorCycle {
		t.Fatalf("expected color cycle, got %v", st.Mode)
	}
	if st.ColorChanges != 1 {
		t.Fatalf("colour should change immediately on entry, got %d", st.ColorChanges)
	}
	first := st.Color
	clk.Advance(5 * time.Second)
	st = c.State()
	if st.ColorChanges != 2 || st.Color == first {
		t.Fatalf("expected a new colour after 5s, got %+v", st)
	}
	if st.Caption() != "colour changes: 2" {
		t.Fatalf("unexpected caption %q", st.Caption())
	}
	found := false
	for _, col := range palette.Default().Colors() {
		if col == st.Color {
			found = true
		}
	}
	if !found {
		t.Fatalf("colour %v not from the palette", st.Color)
	}
}

func TestListFailureFallsBackToColorCycle(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	c, _ := newController(t, lister, Options{})
	c.Start(context.Background())
	if c.State().Mode != ModeColorCycle {
		t.Fatal("fetch failure should fall back to color cycle")
	}
}

func TestCarouselCrossfade(t *testing.T) {
	lister := &fakeLister{images: images("a.jpg", "b.jpg", "c.jpg")}
	c, clk := newController(t, lister, Options{})
	c.Start(context.Background())

	st := c.State()
	if st.Mode != ModeCarousel || len(st.Images) != 3 {
		t.Fatalf("expected carousel of 3, got %+v", st)
	}
	if st.Fade.Current != 0 || st.Fade.Transitioning {
		t.Fatalf("unexpected initial fade %+v", st.Fade)
	}

	clk.Advance(5 * time.Second)
	st = c.State()
	if !st.Fade.Transitioning || st.Fade.Next != 1 || st.Fade.Opacity != 0 {
		t.Fatalf("expected fade to start at 5s, got %+v", st.Fade)
	}
	clk.Advance(500 * time.Millisecond)
	if op := c.State().Fade.Opacity; math.Abs(op-0.5) > 1e-9 {
		t.Fatalf("expected half opacity, got %f", op)
	}
	clk.Advance(500 * time.Millisecond)
	st = c.State()
	if st.Fade.Transitioning || st.Fade.Current != 1 {
		t.Fatalf("expected index 1 after fade, got %+v", st.Fade)
	}

	clk.Advance(10 * time.Second)
	if cur := c.State().Fade.Current; cur != 0 {
		t.Fatalf("expected wrap to 0 after two more fades, got %d", cur)
	}
	if _, desc := c.Current(); desc == nil || desc.Filename != "a.jpg" {
		t.Fatalf("unexpected current item %+v", desc)
	}
}

func TestReplacingListCancelsPendingAdvance(t *testing.T) {
	lister := &fakeLister{images: images("a.jpg", "b.jpg", "c.jpg")}
	c, clk := newController(t, lister, Options{})
	c.Start(context.Background())

	clk.Advance(5500 * time.Millisecond)
	if !c.State().Fade.Transitioning {
		t.Fatal("expected a fade in progress")
	}
	lister.set(images("x.jpg", "y.jpg"), nil)
	c.Refresh()
	clk.Advance(500 * time.Millisecond)

	st := c.State()
	if len(st.Images) != 2 || st.Images[0].Filename != "x.jpg" {
		t.Fatalf("list not replaced: %+v", st.Images)
	}
	if st.Fade.Current != 0 || st.Fade.Transitioning {
		t.Fatalf("stale advance applied to the new list: %+v", st.Fade)
	}
}

func TestCarouselPollsStore(t *testing.T) {
	lister := &fakeLister{images: images("a.jpg")}
	c, clk := newController(t, lister, Options{})
	c.Start(context.Background())
	if lister.calls != 1 {
		t.Fatalf("expected initial fetch, got %d", lister.calls)
	}
	clk.Advance(30 * time.Second)
	if lister.calls != 2 {
		t.Fatalf("expected a refresh after 30s, got %d", lister.calls)
	}
	lister.set(nil, nil)
	clk.Advance(30 * time.Second)
	if c.State().Mode != ModeColorCycle {
		t.Fatal("store emptied, expected color cycle")
	}
	clk.Advance(60 * time.Second)
	if lister.calls != 3 {
		t.Fatalf("polling must stop outside the carousel, got %d calls", lister.calls)
	}
}

func TestHandOffShowsDrawing(t *testing.T) {
	lister := &fakeLister{}
	ch := handoff.NewMemory()
	c, clk := newController(t, lister, Options{Channel: ch})
	c.Start(context.Background())

	var repaints int
	c.Subscribe(func() { repaints++ })
	m := handoff.NewMessage(handoff.KindDrawingComplete, pngDataURL(t), "drawing finished", clk.Now())
	if err := ch.Publish(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	st := c.State()
	if st.Mode != ModeSingleDrawing || st.Drawing == nil {
		t.Fatalf("expected single drawing, got %v", st.Mode)
	}
	if !st.ShowMessage || st.Message != "drawing finished" || st.Caption() != CaptionShowcase {
		t.Fatalf("expected overlay message, got %+v", st)
	}
	if repaints == 0 {
		t.Fatal("subscribers should be told about the change")
	}
	if ch.Pending() {
		t.Fatal("consumed message should be cleared")
	}

	clk.Advance(3 * time.Second)
	st = c.State()
	if st.ShowMessage {
		t.Fatal("message should hide after 3s")
	}
	clk.Advance(time.Minute)
	if c.State().Mode != ModeSingleDrawing {
		t.Fatal("drawing should persist until the next hand-off")
	}

	lister.set(images("a.jpg", "b.jpg"), nil)
	ch.Publish(context.Background(), handoff.NewMessage(handoff.KindReturnToStart, "", "back", clk.Now()))
	st = c.State()
	if st.Mode != ModeCarousel || st.Drawing != nil || len(st.Images) != 2 {
		t.Fatalf("expected carousel after returnToStart, got %+v", st)
	}
}

func TestPendingMessageSeenOnStart(t *testing.T) {
	ch := handoff.NewMemory()
	ch.Publish(context.Background(), handoff.NewMessage(handoff.KindDrawingComplete, pngDataURL(t), "", time.Now()))
	c, _ := newController(t, &fakeLister{}, Options{Channel: ch})
	c.Start(context.Background())
	if c.State().Mode != ModeSingleDrawing {
		t.Fatal("a message published before start should be shown")
	}
}

func TestCachedDrawingPickedUp(t *testing.T) {
	lister := &fakeLister{images: images("a.jpg")}
	cached := &oneShotCache{data: []byte(pngDataURL(t))}
	c, _ := newController(t, lister, Options{Cache: cached})
	c.Start(context.Background())
	if c.State().Mode != ModeSingleDrawing {
		t.Fatal("cached drawing should be shown on start")
	}
	if lister.calls != 0 {
		t.Fatal("carousel should not load while a cached drawing is shown")
	}
	if cached.data != nil {
		t.Fatal("cached drawing should be consumed")
	}
	if st := c.State(); !st.ShowMessage || st.Message != CaptionShowcase {
		t.Fatalf("cached drawing should flash the showcase note, got %+v", st)
	}
}

func TestMalformedDrawingKeepsMode(t *testing.T) {
	c, _ := newController(t, &fakeLister{}, Options{})
	c.Start(context.Background())
	c.HandleMessage(handoff.Message{Kind: handoff.KindDrawingComplete, ImageData: "data:image/png;base64,!!!", Note: "x"})
	st := c.State()
	if st.Mode != ModeColorCycle || !st.ShowMessage {
		t.Fatalf("bad payload should only flash the note, got %+v", st)
	}
}

func TestCrossfaderSingleItemIsStatic(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	f := NewCrossfader(clk, 5*time.Second, time.Second, nil)
	f.Reset(1)
	if clk.Pending() != 0 {
		t.Fatal("a single item should not schedule fades")
	}
	f.Reset(2)
	clk.Advance(5 * time.Second)
	f.Stop()
	clk.Advance(time.Second)
	if st := f.State(); st.Transitioning || st.Current != 0 || st.Count != 0 {
		t.Fatalf("stopped fader changed state: %+v", st)
	}
}

type mapFetcher map[string][]byte

func (m mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if d, ok := m[url]; ok {
		return d, nil
	}
	return nil, errors.New("404")
}

func TestGalleryLoadsAndRetains(t *testing.T) {
	_, data, _ := dataurl.Decode(pngDataURL(t))
	loads := 0
	g := NewGallery(mapFetcher{"http://a": data}, func() { loads++ })
	g.async = func(f func()) { f() }

	if _, ok := g.Get("http://a"); ok {
		t.Fatal("first Get should start a load, not return")
	}
	img, ok := g.Get("http://a")
	if !ok || img.Bounds().Dx() != 4 || loads != 1 {
		t.Fatalf("expected decoded image, got %v %v loads=%d", img, ok, loads)
	}
	g.Get("http://missing")
	g.Get("http://missing")
	if loads != 1 {
		t.Fatal("failed load should not notify")
	}
	g.Retain(nil)
	if g.Len() != 0 {
		t.Fatal("Retain(nil) should drop everything")
	}
}
