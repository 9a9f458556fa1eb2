package danmaku

import (
	"fmt"
	"sort"
)

// Collection is the loaded annotation set, ordered by time. It is read-only
// once built.
type Collection struct {
	items []*Annotation
}

// NewCollection validates every tuple and returns the annotations sorted by
// time. Ties keep their input order.
func NewCollection(tuples []Tuple) (*Collection, error) {
	items := make([]*Annotation, 0, len(tuples))
	for i, t := range tuples {
		a, err := NewAnnotation(t)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		items = append(items, a)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].time < items[j].time
	})
	return &Collection{items: items}, nil
}

// Len returns the number of annotations.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// At returns the annotation at index i.
func (c *Collection) At(i int) *Annotation {
	return c.items[i]
}

// Search returns the leftmost index whose time is >= t. ok is false when no
// such entry exists, including for an empty collection.
func (c *Collection) Search(t float64) (idx int, ok bool) {
	n := c.Len()
	idx = sort.Search(n, func(i int) bool { return c.items[i].time >= t })
	if idx >= n {
		return 0, false
	}
	return idx, true
}
