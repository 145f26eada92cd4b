package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/doodlekiosk/internal/cache"
	"github.com/example/doodlekiosk/internal/canvas"
	"github.com/example/doodlekiosk/internal/clock"
	"github.com/example/doodlekiosk/internal/dataurl"
	"github.com/example/doodlekiosk/internal/handoff"
	"github.com/example/doodlekiosk/internal/store"
)

type fakeUploader struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, filename, mimeType string, data []byte) (store.Stored, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, filename+" "+mimeType)
	if u.err != nil {
		return store.Stored{}, u.err
	}
	return store.Stored{Filename: filename, Size: int64(len(data)), MIMEType: mimeType}, nil
}

func (u *fakeUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

type mapCache struct {
	values map[string][]byte
}

func (m *mapCache) Put(key string, value []byte) (string, error) {
	m.values[key] = value
	return "map", nil
}

type recorder struct {
	mu   sync.Mutex
	msgs []handoff.Message
}

func (r *recorder) add(m handoff.Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
}

func (r *recorder) kinds() []handoff.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]handoff.Kind, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Kind
	}
	return out
}

func (r *recorder) last() handoff.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs[len(r.msgs)-1]
}

func templateSource(t *testing.T) canvas.TemplateSource {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return canvas.BytesTemplate("t.png", buf.Bytes())
}

type harness struct {
	ctrl     *Controller
	clk      *clock.Fake
	msgs     *recorder
	uploader *fakeUploader
	cache    *mapCache
	steps    []Step
}

func newHarness(t *testing.T, templates ...canvas.TemplateSource) *harness {
	t.Helper()
	if len(templates) == 0 {
		templates = []canvas.TemplateSource{templateSource(t)}
	}
	h := &harness{
		clk:      clock.NewFake(time.Unix(1700000000, 0)),
		msgs:     &recorder{},
		uploader: &fakeUploader{},
		cache:    &mapCache{values: map[string][]byte{}},
	}
	ch := handoff.NewMemory()
	stop, err := ch.Observe(context.Background(), h.msgs.add)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(stop)
	h.ctrl = New(Options{
		Clock:     h.clk,
		Channel:   ch,
		Cache:     h.cache,
		Uploader:  h.uploader,
		Templates: templates,
		Width:     320,
		Height:    180,
		Pick:      func(int) int { return 0 },
	})
	h.ctrl.Subscribe(func(s Step) { h.steps = append(h.steps, s) })
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) draw() {
	s := h.ctrl.Surface()
	s.HandlePointer(canvas.PointerEvent{Kind: canvas.PointerPress, Pos: canvas.Pt(10, 10)})
	s.HandlePointer(canvas.PointerEvent{Kind: canvas.PointerMove, Pos: canvas.Pt(100, 100)})
	s.HandlePointer(canvas.PointerEvent{Kind: canvas.PointerRelease, Pos: canvas.Pt(100, 100)})
}

func TestFullCycleMessageOrder(t *testing.T) {
	h := newHarness(t)
	if h.ctrl.Step() != StepStart {
		t.Fatalf("expected start, got %v", h.ctrl.Step())
	}
	if h.clk.Pending() != 0 {
		t.Fatal("start step must not arm a timer")
	}

	h.ctrl.Tap()
	if h.ctrl.Step() != StepDraw || h.ctrl.Surface() == nil {
		t.Fatalf("expected draw with a loaded surface, got %v", h.ctrl.Step())
	}
	if h.ctrl.Template() != "t.png" {
		t.Fatalf("unexpected template %q", h.ctrl.Template())
	}
	h.draw()
	h.ctrl.Submit()
	h.ctrl.Wait()

	if h.ctrl.Step() != StepEnd {
		t.Fatalf("expected end, got %v", h.ctrl.Step())
	}
	m := h.msgs.last()
	if m.Kind != handoff.KindDrawingComplete || m.Note != NoteSubmitted {
		t.Fatalf("unexpected message %+v", m)
	}
	img, err := dataurl.DecodeImage(m.ImageData)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if img.Bounds().Size() != image.Pt(320, 180) {
		t.Fatalf("unexpected payload size %v", img.Bounds())
	}
	if h.uploader.count() != 1 {
		t.Fatalf("expected one upload, got %d", h.uploader.count())
	}
	if cached := string(h.cache.values[cache.DrawingKey]); cached != m.ImageData {
		t.Fatal("cached drawing should match the published payload")
	}

	h.ctrl.Tap()
	if h.ctrl.Step() != StepStart {
		t.Fatalf("expected start, got %v", h.ctrl.Step())
	}
	want := []handoff.Kind{handoff.KindDrawingComplete, handoff.KindReturnToStart}
	got := h.msgs.kinds()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("message order %v, want %v", got, want)
	}
	if h.msgs.last().Note != NoteReturned {
		t.Fatalf("unexpected note %q", h.msgs.last().Note)
	}
	steps := []Step{StepDraw, StepEnd, StepStart}
	if len(h.steps) != len(steps) {
		t.Fatalf("subscriber saw %v, want %v", h.steps, steps)
	}
	for i := range steps {
		if h.steps[i] != steps[i] {
			t.Fatalf("subscriber saw %v, want %v", h.steps, steps)
		}
	}
	if h.clk.Pending() != 0 {
		t.Fatalf("returning to start should cancel timers, %d pending", h.clk.Pending())
	}
}

func TestDrawTimeoutReturnsToStart(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Tap()
	h.draw()

	h.clk.Advance(59 * time.Second)
	if h.ctrl.Step() != StepDraw {
		t.Fatal("timed out too early")
	}
	h.clk.Advance(time.Second)
	if h.ctrl.Step() != StepStart {
		t.Fatalf("expected start after 60s, got %v", h.ctrl.Step())
	}
	kinds := h.msgs.kinds()
	if len(kinds) != 1 || kinds[0] != handoff.KindReturnToStart {
		t.Fatalf("expected a single returnToStart, got %v", kinds)
	}
	if h.msgs.last().Note != NoteTimedOut {
		t.Fatalf("unexpected note %q", h.msgs.last().Note)
	}
	if h.uploader.count() != 0 || len(h.cache.values) != 0 {
		t.Fatal("a timed out drawing must be discarded")
	}
}

func TestPointerActivityResetsTimer(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Tap()
	h.clk.Advance(50 * time.Second)
	h.ctrl.HandlePointer(canvas.PointerEvent{Kind: canvas.PointerPress, Pos: canvas.Pt(5, 5)})
	h.ctrl.HandlePointer(canvas.PointerEvent{Kind: canvas.PointerRelease, Pos: canvas.Pt(5, 5)})
	h.clk.Advance(50 * time.Second)
	if h.ctrl.Step() != StepDraw {
		t.Fatal("pointer activity should restart the inactivity timer")
	}
	if !h.ctrl.Undo() {
		t.Fatal("expected undo of the committed dot")
	}
	h.clk.Advance(60 * time.Second)
	if h.ctrl.Step() != StepStart {
		t.Fatal("expected timeout after inactivity")
	}
	if h.clk.Pending() != 0 {
		t.Fatalf("stale timers left armed: %d", h.clk.Pending())
	}
}

func TestEndTimeoutReturnsToStart(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Tap()
	h.ctrl.Submit()
	h.ctrl.Wait()
	h.clk.Advance(60 * time.Second)
	if h.ctrl.Step() != StepStart {
		t.Fatalf("expected start, got %v", h.ctrl.Step())
	}
	kinds := h.msgs.kinds()
	if len(kinds) != 2 || kinds[1] != handoff.KindReturnToStart {
		t.Fatalf("unexpected messages %v", kinds)
	}
}

func TestExportFailureStillAdvances(t *testing.T) {
	broken := canvas.BytesTemplate("broken.png", []byte("not a png"))
	h := newHarness(t, broken)
	h.ctrl.Tap()
	if h.ctrl.Step() != StepDraw {
		t.Fatal("a failed template load must not block the Draw step")
	}
	if h.ctrl.Surface() != nil {
		t.Fatal("expected the loading placeholder")
	}
	h.ctrl.Submit()
	h.ctrl.Wait()
	if h.ctrl.Step() != StepEnd {
		t.Fatalf("expected end, got %v", h.ctrl.Step())
	}
	if len(h.msgs.kinds()) != 0 || h.uploader.count() != 0 {
		t.Fatal("nothing should be published or uploaded without an image")
	}
}

func TestUploadFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.uploader.err = errors.New("connection refused")
	h.ctrl.Tap()
	h.ctrl.Submit()
	h.ctrl.Wait()
	if h.ctrl.Step() != StepEnd || len(h.msgs.kinds()) != 1 {
		t.Fatal("upload failure must not affect the hand-off")
	}
}

func TestStaleTimerIgnored(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Tap()
	stale := h.ctrl.gen
	h.ctrl.Submit()
	h.ctrl.Tap()
	h.ctrl.Tap()
	before := len(h.msgs.kinds())
	h.ctrl.onTimeout(stale)
	if h.ctrl.Step() != StepDraw || len(h.msgs.kinds()) != before {
		t.Fatal("a stale timer must not force a transition")
	}
}

func TestTapIgnoredWhileDrawing(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Tap()
	h.ctrl.Tap()
	if h.ctrl.Step() != StepDraw {
		t.Fatal("tap in draw must not change step")
	}
	if h.ctrl.HandlePointer(canvas.PointerEvent{Kind: canvas.PointerMove}) {
		t.Fatal("move without press should not draw")
	}
	if !strings.Contains(StepDraw.String(), "draw") {
		t.Fatal("unexpected step name")
	}
}

func TestSetViewportDuringSubmit(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Tap()
	h.draw()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			h.ctrl.SetViewport(canvas.Viewport{Size: image.Pt(640+i, 360)})
		}
	}()
	h.ctrl.Submit()
	wg.Wait()
	h.ctrl.Wait()

	if h.ctrl.Step() != StepEnd {
		t.Fatalf("expected end, got %v", h.ctrl.Step())
	}
	if kinds := h.msgs.kinds(); len(kinds) != 1 || kinds[0] != handoff.KindDrawingComplete {
		t.Fatalf("unexpected messages %v", kinds)
	}
}
