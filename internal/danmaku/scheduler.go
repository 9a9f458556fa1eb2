package danmaku

import (
	"log/slog"
	"math"

	"danmaku-overlay/internal/platform/metrics"
)

// scheduler decides which annotations become visible on each tick. It is not
// safe for concurrent use; the Engine runs it on its loop goroutine only.
type scheduler struct {
	opts    *Options
	log     *slog.Logger
	metrics *metrics.Metrics

	surface Surface
	coll    *Collection
	lanes   LaneSet
	active  *registry

	cursor    int
	hasCursor bool
}

func newScheduler(opts *Options, log *slog.Logger, m *metrics.Metrics) *scheduler {
	return &scheduler{
		opts:    opts,
		log:     log,
		metrics: m,
		active:  newRegistry(),
	}
}

func (s *scheduler) clearCursor() {
	s.cursor = 0
	s.hasCursor = false
}

// candidate returns the next index to evaluate. A cached cursor is used
// directly; a cursor that has run past the end means the forward pass is
// exhausted until the cursor is cleared. Without a cursor the collection is
// searched for the first entry at or after now and the result is cached.
// A cached entry that fell behind the tolerance window can never become due
// again, so the cursor moves forward to the first entry still inside it.
func (s *scheduler) candidate(now float64) (int, bool) {
	if s.hasCursor && s.cursor < s.coll.Len() && s.coll.At(s.cursor).time < now-s.opts.Tolerance {
		idx, ok := s.coll.Search(now - s.opts.Tolerance)
		if !ok {
			idx = s.coll.Len()
		}
		s.cursor = idx
	}
	if s.hasCursor {
		return s.cursor, s.cursor < s.coll.Len()
	}
	idx, ok := s.coll.Search(now)
	if ok {
		s.cursor, s.hasCursor = idx, true
	}
	return idx, ok
}

func (s *scheduler) advance(idx int) {
	s.cursor = idx + 1
	s.hasCursor = true
}

// process activates every annotation due at now. An annotation outside the
// tolerance window stops the pass without moving the cursor so it is
// re-evaluated on the next tick. An annotation that finds no lane is still
// consumed.
func (s *scheduler) process(now float64) {
	if s.coll == nil || s.surface == nil {
		return
	}
	for {
		idx, ok := s.candidate(now)
		if !ok {
			return
		}
		a := s.coll.At(idx)
		if s.active.has(a) {
			s.advance(idx)
			continue
		}
		if math.Abs(a.time-now) > s.opts.Tolerance {
			return
		}
		s.advance(idx)
		s.activate(a)
	}
}

// activate places a in a lane and hands it to the surface. It reports false
// when every lane is saturated for a's mode.
func (s *scheduler) activate(a *Annotation) bool {
	width, _ := s.surface.Size()
	lane, ok := s.lanes.Pick(a.mode, width, s.opts.LineMargin)
	if !ok {
		s.log.Debug("annotation dropped, no free lane",
			slog.Float64("time", a.time),
			slog.String("mode", a.mode.String()),
			slog.Int("lanes", s.lanes.Len()))
		if s.metrics != nil {
			s.metrics.IncDrops(a.mode.String())
		}
		return false
	}

	v := &VisibleItem{
		Annotation: a,
		Lane:       lane,
		Duration:   s.duration(a.mode, width),
	}
	s.active.add(v)

	lh := s.opts.LineHeight()
	v.Handle = s.surface.Render(RenderSpec{
		Annotation: a,
		Lane:       lane,
		Top:        float64(lane) * lh,
		LineHeight: lh,
		FontSize:   s.opts.FontSize,
		StartX:     width,
		Duration:   v.Duration,
	})
	v.Width = v.Handle.Bounds().W
	s.lanes.Lane(lane).add(v)
	v.Handle.Start()

	if s.metrics != nil {
		s.metrics.IncActivations(a.mode.String())
	}
	return true
}

// duration is the display time in seconds. Scroll items take the time to
// cross the overlay at the configured speed regardless of their width.
func (s *scheduler) duration(m Mode, overlayWidth float64) float64 {
	if m.Fixed() {
		return s.opts.FixedDuration
	}
	return overlayWidth / s.opts.Speed
}

// cleanup removes expired items from every lane.
func (s *scheduler) cleanup(now float64) {
	s.lanes.expire(now, s.expired)
}

func (s *scheduler) expired(v *VisibleItem) {
	s.release(v)
	if s.metrics != nil {
		s.metrics.IncExpiries()
	}
}

func (s *scheduler) release(v *VisibleItem) {
	s.active.remove(v.Annotation)
	if v.Handle != nil {
		v.Handle.Release()
	}
}

// resize matches the lane count to the surface height.
func (s *scheduler) resize() {
	if s.surface == nil {
		return
	}
	_, height := s.surface.Size()
	n := s.opts.LaneCount(height)
	if n == s.lanes.Len() {
		return
	}
	s.log.Debug("lane set resized", slog.Int("from", s.lanes.Len()), slog.Int("to", n))
	s.lanes.Resize(n, s.release)
}

// reset drops every visible item and the cursor.
func (s *scheduler) reset() {
	s.lanes.clear(s.release)
	s.clearCursor()
}

func (s *scheduler) pauseAll() {
	s.lanes.each(func(v *VisibleItem) { v.Handle.Pause() })
}

func (s *scheduler) resumeAll() {
	s.lanes.each(func(v *VisibleItem) { v.Handle.Resume() })
}

func (s *scheduler) setCollection(c *Collection) {
	s.coll = c
	s.clearCursor()
}

func (s *scheduler) views() []ItemView {
	out := make([]ItemView, 0, s.active.len())
	s.lanes.each(func(v *VisibleItem) { out = append(out, v.view()) })
	return out
}
