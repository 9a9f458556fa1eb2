package danmaku

import (
	"errors"
	"testing"
)

func TestNewCollection_stable_sort(t *testing.T) {
	in := []Tuple{
		{Time: 3, Mode: ModeScroll, Text: "c"},
		{Time: 1, Mode: ModeScroll, Text: "a1"},
		{Time: 2, Mode: ModeTop, Text: "b"},
		{Time: 1, Mode: ModeBottom, Text: "a2"},
		{Time: 1, Mode: ModeScroll, Text: "a3"},
	}
	c, err := NewCollection(in)
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	want := []string{"a1", "a2", "a3", "b", "c"}
	if c.Len() != len(want) {
		t.Fatalf("Len = %d, want %d", c.Len(), len(want))
	}
	for i, text := range want {
		if got := c.At(i).Text(); got != text {
			t.Errorf("At(%d) = %q, want %q", i, got, text)
		}
	}
	for i := 1; i < c.Len(); i++ {
		if c.At(i).Time() < c.At(i-1).Time() {
			t.Errorf("order broken at %d", i)
		}
	}
}

func TestNewCollection_invalid_mode(t *testing.T) {
	_, err := NewCollection([]Tuple{scroll(1), {Time: 2, Mode: Mode(7)}})
	if !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
}

func TestCollection_Search(t *testing.T) {
	c, err := NewCollection(tuples(scroll(1), scroll(2), scroll(2), scroll(4)))
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		at   float64
		idx  int
		want bool
	}{
		{0, 0, true},
		{1, 0, true},
		{1.5, 1, true},
		{2, 1, true},
		{3, 3, true},
		{4, 3, true},
		{4.01, 0, false},
	}
	for _, tc := range cases {
		idx, ok := c.Search(tc.at)
		if ok != tc.want || (ok && idx != tc.idx) {
			t.Errorf("Search(%v) = %d,%v want %d,%v", tc.at, idx, ok, tc.idx, tc.want)
		}
	}
}

func TestCollection_Search_empty(t *testing.T) {
	c, err := NewCollection(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Search(0); ok {
		t.Error("empty collection should have no candidate")
	}
	var nilColl *Collection
	if nilColl.Len() != 0 {
		t.Error("nil collection should have length 0")
	}
}
