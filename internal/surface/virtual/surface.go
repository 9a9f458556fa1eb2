package virtual

import (
	"sort"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"

	"danmaku-overlay/internal/danmaku"
)

// RenderEvent types.
const (
	RenderCreate     = "create"
	RenderPause      = "pause"
	RenderResume     = "resume"
	RenderRelease    = "release"
	RenderVisibility = "visibility"
	RenderResize     = "resize"
)

// RenderEvent describes a change on the surface. Browser overlays replay
// these to mirror the engine.
type RenderEvent struct {
	Type     string       `json:"type"`
	ID       uint64       `json:"id,omitempty"`
	Text     string       `json:"text,omitempty"`
	Color    string       `json:"color,omitempty"`
	Mode     danmaku.Mode `json:"mode"`
	Lane     int          `json:"lane"`
	Top      float64      `json:"top"`
	StartX   float64      `json:"start_x,omitempty"`
	Width    float64      `json:"width,omitempty"`
	Duration float64      `json:"duration,omitempty"`
	Visible  bool         `json:"visible"`
	Surface  [2]float64   `json:"surface,omitempty"`
}

// MeasureFunc returns the rendered width of text at a font size.
type MeasureFunc func(text string, fontSize int) float64

// MeasureText treats every terminal cell as half an em, so wide (CJK) runes
// measure one full font size.
func MeasureText(text string, fontSize int) float64 {
	return float64(runewidth.StringWidth(text)) * float64(fontSize) / 2
}

// MeasureCells measures text in terminal cells.
func MeasureCells(text string, _ int) float64 {
	return float64(runewidth.StringWidth(text))
}

// Surface is an in-memory overlay.
type Surface struct {
	mu       sync.Mutex
	width    float64
	height   float64
	visible  bool
	closed   bool
	now      func() time.Time
	measure  MeasureFunc
	nextID   uint64
	handles  map[uint64]*Handle
	feed     *feed
	onRender func(RenderEvent)
}

// Option configures a Surface.
type Option func(*Surface)

// WithClock overrides the wall clock used for animations.
func WithClock(now func() time.Time) Option {
	return func(s *Surface) { s.now = now }
}

// WithMeasure overrides text measurement.
func WithMeasure(m MeasureFunc) Option {
	return func(s *Surface) { s.measure = m }
}

// WithRenderListener registers fn to receive every render event. fn is
// called with the surface lock released.
func WithRenderListener(fn func(RenderEvent)) Option {
	return func(s *Surface) { s.onRender = fn }
}

// NewSurface returns a hidden surface of the given size.
func NewSurface(width, height float64, opts ...Option) *Surface {
	s := &Surface{
		width:   width,
		height:  height,
		now:     time.Now,
		measure: MeasureText,
		handles: make(map[uint64]*Handle),
		feed:    newFeed(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Size implements danmaku.Surface.
func (s *Surface) Size() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Render implements danmaku.Surface.
func (s *Surface) Render(spec danmaku.RenderSpec) danmaku.Handle {
	a := spec.Annotation
	s.mu.Lock()
	s.nextID++
	h := &Handle{
		s:     s,
		id:    s.nextID,
		spec:  spec,
		width: s.measure(a.Text(), spec.FontSize),
	}
	s.handles[h.id] = h
	s.mu.Unlock()

	s.emit(RenderEvent{
		Type:     RenderCreate,
		ID:       h.id,
		Text:     a.Text(),
		Color:    a.Color(),
		Mode:     a.Mode(),
		Lane:     spec.Lane,
		Top:      spec.Top,
		StartX:   spec.StartX,
		Width:    h.width,
		Duration: spec.Duration,
	})
	return h
}

// SetVisible implements danmaku.Surface.
func (s *Surface) SetVisible(v bool) {
	s.mu.Lock()
	s.visible = v
	s.mu.Unlock()
	s.emit(RenderEvent{Type: RenderVisibility, Visible: v})
}

// Visible reports whether the overlay is shown.
func (s *Surface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Subscribe implements danmaku.Surface.
func (s *Surface) Subscribe() danmaku.Subscription {
	return s.feed.subscribe()
}

// Close implements danmaku.Surface. Handles still alive are released.
func (s *Surface) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	live := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		live = append(live, h)
	}
	s.mu.Unlock()

	for _, h := range live {
		h.Release()
	}
	s.feed.closeAll()
}

// Closed reports whether Close has been called.
func (s *Surface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// NotifyVisibility tells subscribers that the viewport changed without a
// size change, e.g. entering fullscreen.
func (s *Surface) NotifyVisibility() {
	s.feed.send(danmaku.Event{Kind: danmaku.EventVisibility})
}

// Resize changes the overlay size and notifies subscribers.
func (s *Surface) Resize(width, height float64) {
	s.mu.Lock()
	s.width, s.height = width, height
	s.mu.Unlock()
	s.emit(RenderEvent{Type: RenderResize, Surface: [2]float64{width, height}})
	s.feed.send(danmaku.Event{Kind: danmaku.EventResize})
}

// ItemState is the position of a live handle.
type ItemState struct {
	ID     uint64       `json:"id"`
	Text   string       `json:"text"`
	Color  string       `json:"color"`
	Mode   danmaku.Mode `json:"mode"`
	Lane   int          `json:"lane"`
	Bounds danmaku.Rect `json:"bounds"`
	Paused bool         `json:"paused"`
}

// Items returns every live handle in creation order.
func (s *Surface) Items() []ItemState {
	s.mu.Lock()
	hs := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		hs = append(hs, h)
	}
	s.mu.Unlock()
	sort.Slice(hs, func(i, j int) bool { return hs[i].id < hs[j].id })

	out := make([]ItemState, 0, len(hs))
	for _, h := range hs {
		a := h.spec.Annotation
		out = append(out, ItemState{
			ID:     h.id,
			Text:   a.Text(),
			Color:  a.Color(),
			Mode:   a.Mode(),
			Lane:   h.spec.Lane,
			Bounds: h.Bounds(),
			Paused: h.isPaused(),
		})
	}
	return out
}

func (s *Surface) emit(ev RenderEvent) {
	if s.onRender != nil {
		s.onRender(ev)
	}
}

func (s *Surface) forget(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handles[id]; !ok {
		return false
	}
	delete(s.handles, id)
	return true
}

// Handle is a virtual item. Scroll items move from StartX to fully past the
// left edge over Duration; fixed items are centred.
type Handle struct {
	s     *Surface
	id    uint64
	spec  danmaku.RenderSpec
	width float64

	mu        sync.Mutex
	started   bool
	paused    bool
	runningAt time.Time
	elapsed   time.Duration
}

// ID returns the handle's surface-unique id.
func (h *Handle) ID() uint64 { return h.id }

func (h *Handle) progressLocked() float64 {
	if !h.started || h.spec.Duration <= 0 {
		return 0
	}
	el := h.elapsed
	if !h.paused {
		el += h.s.now().Sub(h.runningAt)
	}
	p := el.Seconds() / h.spec.Duration
	if p > 1 {
		p = 1
	}
	return p
}

// Bounds implements danmaku.Handle.
func (h *Handle) Bounds() danmaku.Rect {
	h.mu.Lock()
	p := h.progressLocked()
	h.mu.Unlock()

	r := danmaku.Rect{Y: h.spec.Top, W: h.width, H: h.spec.LineHeight}
	if h.spec.Annotation.Mode().Fixed() {
		w, _ := h.s.Size()
		r.X = (w - h.width) / 2
		return r
	}
	r.X = h.spec.StartX - p*(h.spec.StartX+h.width)
	return r
}

// Start implements danmaku.Handle.
func (h *Handle) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return
	}
	h.started = true
	h.runningAt = h.s.now()
}

// Pause implements danmaku.Handle.
func (h *Handle) Pause() {
	h.mu.Lock()
	if !h.started || h.paused {
		h.mu.Unlock()
		return
	}
	h.elapsed += h.s.now().Sub(h.runningAt)
	h.paused = true
	h.mu.Unlock()
	h.s.emit(RenderEvent{Type: RenderPause, ID: h.id})
}

// Resume implements danmaku.Handle.
func (h *Handle) Resume() {
	h.mu.Lock()
	if !h.paused {
		h.mu.Unlock()
		return
	}
	h.paused = false
	h.runningAt = h.s.now()
	h.mu.Unlock()
	h.s.emit(RenderEvent{Type: RenderResume, ID: h.id})
}

// Done implements danmaku.Handle.
func (h *Handle) Done() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.started || h.progressLocked() >= 1
}

// Release implements danmaku.Handle.
func (h *Handle) Release() {
	if h.s.forget(h.id) {
		h.s.emit(RenderEvent{Type: RenderRelease, ID: h.id})
	}
}

func (h *Handle) isPaused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}
