package danmaku

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHandle struct {
	mu       sync.Mutex
	spec     RenderSpec
	bounds   Rect
	started  bool
	paused   bool
	done     bool
	released int
}

func (h *fakeHandle) Bounds() Rect {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bounds
}

func (h *fakeHandle) Start() {
	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
}

func (h *fakeHandle) Pause() {
	h.mu.Lock()
	h.paused = true
	h.mu.Unlock()
}

func (h *fakeHandle) Resume() {
	h.mu.Lock()
	h.paused = false
	h.mu.Unlock()
}

func (h *fakeHandle) Done() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done || !h.started
}

func (h *fakeHandle) Release() {
	h.mu.Lock()
	h.released++
	h.mu.Unlock()
}

// moveTo places the trailing edge of the item at right.
func (h *fakeHandle) moveTo(right float64) {
	h.mu.Lock()
	h.bounds.X = right - h.bounds.W
	h.mu.Unlock()
}

func (h *fakeHandle) finish() {
	h.mu.Lock()
	h.done = true
	h.mu.Unlock()
}

type fakeSub struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

func newFakeSub() *fakeSub { return &fakeSub{ch: make(chan Event, 8)} }

func (s *fakeSub) Events() <-chan Event { return s.ch }

func (s *fakeSub) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeSurface struct {
	mu        sync.Mutex
	width     float64
	height    float64
	itemWidth float64
	visible   bool
	closed    bool
	handles   []*fakeHandle
	subs      []*fakeSub
}

func newFakeSurface(width, height float64) *fakeSurface {
	return &fakeSurface{width: width, height: height, itemWidth: 100}
}

func (s *fakeSurface) Size() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *fakeSurface) Render(spec RenderSpec) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &fakeHandle{spec: spec, bounds: Rect{X: spec.StartX, Y: spec.Top, W: s.itemWidth, H: spec.LineHeight}}
	s.handles = append(s.handles, h)
	return h
}

func (s *fakeSurface) SetVisible(v bool) {
	s.mu.Lock()
	s.visible = v
	s.mu.Unlock()
}

func (s *fakeSurface) Subscribe() Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := newFakeSub()
	s.subs = append(s.subs, sub)
	return sub
}

func (s *fakeSurface) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeSurface) resize(w, h float64) {
	s.mu.Lock()
	s.width, s.height = w, h
	sub := s.subs[len(s.subs)-1]
	s.mu.Unlock()
	sub.ch <- Event{Kind: EventResize}
}

// leaked returns handles that were rendered but never released.
func (s *fakeSurface) leaked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.handles {
		h.mu.Lock()
		if h.released == 0 {
			n++
		}
		h.mu.Unlock()
	}
	return n
}

type fakePlayback struct {
	mu     sync.Mutex
	now    float64
	paused bool
	subs   []*fakeSub
}

func (p *fakePlayback) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}

func (p *fakePlayback) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *fakePlayback) Subscribe() Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub := newFakeSub()
	p.subs = append(p.subs, sub)
	return sub
}

func (p *fakePlayback) set(now float64) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
}

func (p *fakePlayback) emit(ev Event) {
	p.mu.Lock()
	sub := p.subs[len(p.subs)-1]
	p.mu.Unlock()
	sub.ch <- ev
}

type manualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type tickers struct {
	mu  sync.Mutex
	all []*manualTicker
}

func (ts *tickers) New(time.Duration) Ticker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	ts.all = append(ts.all, t)
	return t
}

func (ts *tickers) running() []*manualTicker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	var out []*manualTicker
	for _, t := range ts.all {
		if !t.isStopped() {
			out = append(out, t)
		}
	}
	return out
}

// fire delivers one tick to the single running ticker and waits until the
// engine loop has taken it.
func (ts *tickers) fire(t *testing.T) {
	t.Helper()
	running := ts.running()
	if len(running) != 1 {
		t.Fatalf("expected exactly one armed ticker, got %d", len(running))
	}
	select {
	case running[0].ch <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("tick not consumed by engine loop")
	}
}

type fakeFetcher struct {
	payload Payload
	err     error
	gate    chan struct{}
	called  chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (Payload, error) {
	if f.called != nil {
		f.called <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return Payload{}, ctx.Err()
		}
	}
	return f.payload, f.err
}

type decoderFunc func(raw []byte) (DecodeResult, error)

func (f decoderFunc) Decode(raw []byte) (DecodeResult, error) { return f(raw) }

func tuples(ts ...Tuple) []Tuple { return ts }

func scroll(t float64) Tuple { return Tuple{Time: t, Mode: ModeScroll, Text: "s"} }
func top(t float64) Tuple    { return Tuple{Time: t, Mode: ModeTop, Text: "t"} }
func bottom(t float64) Tuple { return Tuple{Time: t, Mode: ModeBottom, Text: "b"} }
