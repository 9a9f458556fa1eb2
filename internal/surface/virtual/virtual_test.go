package virtual

import (
	"sync"
	"testing"
	"time"

	"danmaku-overlay/internal/danmaku"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func annotation(t *testing.T, mode danmaku.Mode, text string) *danmaku.Annotation {
	t.Helper()
	a, err := danmaku.NewAnnotation(danmaku.Tuple{Time: 1, Mode: mode, Color: "#ffffff", Text: text})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestClock(t *testing.T) {
	fc := newFakeClock()
	c := NewClock(fc.Now)
	sub := c.Subscribe()
	defer sub.Close()

	if !c.Paused() || c.CurrentTime() != 0 {
		t.Fatal("clock should start paused at zero")
	}

	c.Play()
	if ev := <-sub.Events(); ev.Kind != danmaku.EventPlay {
		t.Errorf("event = %v, want play", ev.Kind)
	}
	fc.Advance(1500 * time.Millisecond)
	if got := c.CurrentTime(); got != 1.5 {
		t.Errorf("CurrentTime = %v, want 1.5", got)
	}

	c.Pause()
	if ev := <-sub.Events(); ev.Kind != danmaku.EventPause {
		t.Errorf("event = %v, want pause", ev.Kind)
	}
	fc.Advance(time.Second)
	if got := c.CurrentTime(); got != 1.5 {
		t.Errorf("paused clock moved to %v", got)
	}
	c.Pause()

	c.SeekTo(10)
	ev := <-sub.Events()
	if ev.Kind != danmaku.EventSeek || ev.Time != 10 || c.CurrentTime() != 10 {
		t.Errorf("seek event = %+v, time %v", ev, c.CurrentTime())
	}
	select {
	case ev := <-sub.Events():
		t.Errorf("unexpected event %v", ev.Kind)
	default:
	}
}

func TestSubscription_Close(t *testing.T) {
	c := NewClock(nil)
	sub := c.Subscribe()
	sub.Close()
	sub.Close()
	if _, ok := <-sub.Events(); ok {
		t.Error("closed subscription channel should be closed")
	}
	c.Play()
	if c.feed.len() != 0 {
		t.Error("closed subscription still registered")
	}
}

func TestSurface_scroll_geometry(t *testing.T) {
	fc := newFakeClock()
	s := NewSurface(1000, 300, WithClock(fc.Now))
	a := annotation(t, danmaku.ModeScroll, "hello")

	h := s.Render(danmaku.RenderSpec{Annotation: a, FontSize: 20, StartX: 1000, Duration: 10, LineHeight: 24, Top: 48})
	b := h.Bounds()
	if b.W != 50 || b.X != 1000 || b.Y != 48 || b.H != 24 {
		t.Fatalf("bounds before start = %+v", b)
	}
	if !h.Done() {
		t.Error("an unstarted handle counts as done")
	}

	h.Start()
	fc.Advance(5 * time.Second)
	if got := h.Bounds().X; got != 1000-0.5*1050 {
		t.Errorf("halfway X = %v", got)
	}

	h.Pause()
	fc.Advance(time.Hour)
	if got := h.Bounds().X; got != 475 {
		t.Errorf("paused X = %v, want 475", got)
	}
	h.Resume()
	if h.Done() {
		t.Error("halfway item is not done")
	}
	fc.Advance(5 * time.Second)
	if !h.Done() || h.Bounds().Right() != 0 {
		t.Errorf("finished item should sit just off the left edge, got %+v", h.Bounds())
	}
}

func TestSurface_fixed_item_is_centred(t *testing.T) {
	s := NewSurface(800, 300, WithMeasure(MeasureCells))
	a := annotation(t, danmaku.ModeTop, "中文ab")
	h := s.Render(danmaku.RenderSpec{Annotation: a, FontSize: 20, StartX: 800, Duration: 5})
	if b := h.Bounds(); b.W != 6 || b.X != 397 {
		t.Errorf("bounds = %+v", b)
	}
}

func TestSurface_events_and_close(t *testing.T) {
	var mu sync.Mutex
	var events []RenderEvent
	s := NewSurface(640, 360, WithRenderListener(func(ev RenderEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))
	sub := s.Subscribe()

	s.SetVisible(true)
	h1 := s.Render(danmaku.RenderSpec{Annotation: annotation(t, danmaku.ModeScroll, "a"), Duration: 1})
	s.Render(danmaku.RenderSpec{Annotation: annotation(t, danmaku.ModeBottom, "b"), Duration: 1})
	h1.Start()
	h1.Pause()
	h1.Resume()
	h1.Release()
	h1.Release()

	s.Resize(320, 180)
	if ev := <-sub.Events(); ev.Kind != danmaku.EventResize {
		t.Errorf("event = %v, want resize", ev.Kind)
	}
	if w, h := s.Size(); w != 320 || h != 180 {
		t.Errorf("size = %vx%v", w, h)
	}
	if items := s.Items(); len(items) != 1 || items[0].Text != "b" {
		t.Errorf("items = %+v", items)
	}

	s.Close()
	if !s.Closed() || len(s.Items()) != 0 {
		t.Error("close must release every handle")
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("close must end subscriptions")
	}

	mu.Lock()
	defer mu.Unlock()
	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	want := []string{RenderVisibility, RenderCreate, RenderCreate, RenderPause, RenderResume, RenderRelease, RenderResize, RenderRelease}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestSurface_with_engine(t *testing.T) {
	fc := newFakeClock()
	surf := NewSurface(1000, 300, WithClock(fc.Now))
	clock := NewClock(fc.Now)
	e := danmaku.New(danmaku.Config{Options: danmaku.DefaultOptions()})
	defer e.Close()

	if err := e.Attach(surf, clock); err != nil {
		t.Fatal(err)
	}
	if err := e.Show(); err != nil {
		t.Fatal(err)
	}
	if s := e.State(); s != danmaku.StatePaused {
		t.Errorf("a paused clock should pause the engine on show, got %v", s)
	}
	if !surf.Visible() {
		t.Error("surface should be visible")
	}
	e.Detach()
	if !surf.Closed() {
		t.Error("detach should close the surface")
	}
}
