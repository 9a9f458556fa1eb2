package danmaku

import "testing"

func item(t *testing.T, tp Tuple, right, width float64) *VisibleItem {
	t.Helper()
	a, err := NewAnnotation(tp)
	if err != nil {
		t.Fatal(err)
	}
	h := &fakeHandle{bounds: Rect{X: right - width, W: width}, started: true}
	return &VisibleItem{Annotation: a, Handle: h, Width: width, Duration: DefaultFixedDuration}
}

func TestLaneSet_Pick_scroll_margin(t *testing.T) {
	var s LaneSet
	s.Resize(2, nil)

	// Lane 0 holds an item whose trailing edge sits 10px from the far edge.
	s.Lane(0).add(item(t, scroll(0), 990, 100))

	if idx, ok := s.Pick(ModeScroll, 1000, 20); !ok || idx != 1 {
		t.Errorf("margin 20: got %d,%v want lane 1", idx, ok)
	}
	if idx, ok := s.Pick(ModeScroll, 1000, 10); !ok || idx != 0 {
		t.Errorf("margin 10: got %d,%v want lane 0", idx, ok)
	}

	s.Lane(1).add(item(t, scroll(0), 1100, 100))
	if _, ok := s.Pick(ModeScroll, 1000, 20); ok {
		t.Error("expected no lane when every queue is within the margin")
	}
}

func TestLaneSet_Pick_checks_newest_item_only(t *testing.T) {
	var s LaneSet
	s.Resize(1, nil)
	s.Lane(0).add(item(t, scroll(0), 200, 100))
	s.Lane(0).add(item(t, scroll(1), 1000, 100))
	if _, ok := s.Pick(ModeScroll, 1000, 20); ok {
		t.Error("newest item blocks the lane")
	}
}

func TestLaneSet_Pick_fixed(t *testing.T) {
	var s LaneSet
	s.Resize(3, nil)

	if idx, ok := s.Pick(ModeTop, 1000, 20); !ok || idx != 0 {
		t.Errorf("top: got %d,%v want 0", idx, ok)
	}
	if idx, ok := s.Pick(ModeBottom, 1000, 20); !ok || idx != 2 {
		t.Errorf("bottom: got %d,%v want 2", idx, ok)
	}

	s.Lane(0).add(item(t, top(0), 0, 10))
	s.Lane(2).add(item(t, bottom(0), 0, 10))
	if idx, ok := s.Pick(ModeTop, 1000, 20); !ok || idx != 1 {
		t.Errorf("top after fill: got %d,%v want 1", idx, ok)
	}
	if idx, ok := s.Pick(ModeBottom, 1000, 20); !ok || idx != 1 {
		t.Errorf("bottom after fill: got %d,%v want 1", idx, ok)
	}

	s.Lane(1).add(item(t, top(0), 0, 10))
	if _, ok := s.Pick(ModeBottom, 1000, 20); ok {
		t.Error("expected no lane for bottom item")
	}
	// Fixed items do not block scrolling in the same lane.
	if idx, ok := s.Pick(ModeScroll, 1000, 20); !ok || idx != 0 {
		t.Errorf("scroll next to fixed: got %d,%v want 0", idx, ok)
	}
}

func TestLaneSet_Resize(t *testing.T) {
	var s LaneSet
	s.Resize(3, nil)
	keep := s.Lane(0)
	dropped := item(t, scroll(0), 500, 100)
	s.Lane(2).add(dropped)

	var released []*VisibleItem
	release := func(v *VisibleItem) { released = append(released, v) }

	s.Resize(3, release)
	if len(released) != 0 {
		t.Fatal("same size must be a no-op")
	}

	s.Resize(2, release)
	if s.Len() != 2 || len(released) != 1 || released[0] != dropped {
		t.Fatalf("shrink: len=%d released=%d", s.Len(), len(released))
	}
	s.Resize(4, release)
	if s.Len() != 4 || s.Lane(0) != keep || s.Lane(3).Len() != 0 {
		t.Error("grow must keep existing lanes and append empty ones")
	}
}

func TestLane_expire(t *testing.T) {
	var l Lane
	first := item(t, scroll(0), 100, 50)
	second := item(t, scroll(1), 400, 50)
	third := item(t, scroll(2), 800, 50)
	fixed := item(t, top(10), 0, 50)
	for _, v := range []*VisibleItem{first, second, third, fixed} {
		l.add(v)
	}

	first.Handle.(*fakeHandle).finish()
	third.Handle.(*fakeHandle).finish()

	var released []*VisibleItem
	l.expire(14.9, func(v *VisibleItem) { released = append(released, v) })

	if len(released) != 1 || released[0] != first {
		t.Fatalf("expected only the front item to expire, got %d", len(released))
	}
	if l.Len() != 3 {
		t.Errorf("Len = %d, want 3", l.Len())
	}

	l.expire(15, func(v *VisibleItem) { released = append(released, v) })
	if len(released) != 2 || released[1] != fixed {
		t.Errorf("fixed item should expire at time+duration")
	}
}
