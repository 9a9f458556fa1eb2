package danmaku

// Lane is one horizontal slot of the overlay. It holds the scroll items that
// entered it, oldest first, and at most one fixed item.
type Lane struct {
	queue []*VisibleItem
	fixed *VisibleItem
}

// acceptsScroll reports whether a new scroll item can enter without touching
// the trailing edge of the most recent one. Scroll speed is uniform, so
// checking the newest item is enough.
func (l *Lane) acceptsScroll(overlayWidth, margin float64) bool {
	if len(l.queue) == 0 {
		return true
	}
	last := l.queue[len(l.queue)-1]
	return overlayWidth-last.Handle.Bounds().Right() >= margin
}

func (l *Lane) acceptsFixed() bool {
	return l.fixed == nil
}

func (l *Lane) add(v *VisibleItem) {
	if v.Annotation.mode.Fixed() {
		l.fixed = v
		return
	}
	l.queue = append(l.queue, v)
}

// expire removes finished items and passes each of them to release. Scroll
// items finish in queue order so the scan stops at the first running one.
func (l *Lane) expire(now float64, release func(*VisibleItem)) {
	n := 0
	for n < len(l.queue) && l.queue[n].Handle.Done() {
		release(l.queue[n])
		l.queue[n] = nil
		n++
	}
	if n > 0 {
		l.queue = l.queue[n:]
	}
	if l.fixed != nil && now-l.fixed.Annotation.time >= l.fixed.Duration {
		release(l.fixed)
		l.fixed = nil
	}
}

func (l *Lane) clear(release func(*VisibleItem)) {
	for _, v := range l.queue {
		release(v)
	}
	l.queue = nil
	if l.fixed != nil {
		release(l.fixed)
		l.fixed = nil
	}
}

func (l *Lane) each(fn func(*VisibleItem)) {
	for _, v := range l.queue {
		fn(v)
	}
	if l.fixed != nil {
		fn(l.fixed)
	}
}

// Len returns the number of items in the lane.
func (l *Lane) Len() int {
	n := len(l.queue)
	if l.fixed != nil {
		n++
	}
	return n
}

// LaneSet is the ordered set of lanes sized to the overlay height.
type LaneSet struct {
	lanes []*Lane
}

// Len returns the number of lanes.
func (s *LaneSet) Len() int { return len(s.lanes) }

// Lane returns lane i.
func (s *LaneSet) Lane(i int) *Lane { return s.lanes[i] }

// Resize grows or shrinks the set to n lanes. Trailing lanes are cleared
// through release when shrinking. Existing lanes keep their position.
func (s *LaneSet) Resize(n int, release func(*VisibleItem)) {
	if n < 0 {
		n = 0
	}
	if n == len(s.lanes) {
		return
	}
	for len(s.lanes) > n {
		last := len(s.lanes) - 1
		s.lanes[last].clear(release)
		s.lanes[last] = nil
		s.lanes = s.lanes[:last]
	}
	for len(s.lanes) < n {
		s.lanes = append(s.lanes, &Lane{})
	}
}

// Pick returns the index of the first lane that can take an annotation of
// mode m. Scroll and top items scan top-down, bottom items scan bottom-up.
func (s *LaneSet) Pick(m Mode, overlayWidth, margin float64) (int, bool) {
	switch m {
	case ModeBottom:
		for i := len(s.lanes) - 1; i >= 0; i-- {
			if s.lanes[i].acceptsFixed() {
				return i, true
			}
		}
	case ModeTop:
		for i, l := range s.lanes {
			if l.acceptsFixed() {
				return i, true
			}
		}
	default:
		for i, l := range s.lanes {
			if l.acceptsScroll(overlayWidth, margin) {
				return i, true
			}
		}
	}
	return 0, false
}

func (s *LaneSet) expire(now float64, release func(*VisibleItem)) {
	for _, l := range s.lanes {
		l.expire(now, release)
	}
}

func (s *LaneSet) clear(release func(*VisibleItem)) {
	for _, l := range s.lanes {
		l.clear(release)
	}
}

func (s *LaneSet) each(fn func(*VisibleItem)) {
	for _, l := range s.lanes {
		l.each(fn)
	}
}
