package danmaku

// registry is the set of annotations that currently have a visible item.
type registry struct {
	items map[*Annotation]*VisibleItem
}

func newRegistry() *registry {
	return &registry{items: make(map[*Annotation]*VisibleItem)}
}

func (r *registry) has(a *Annotation) bool {
	_, ok := r.items[a]
	return ok
}

func (r *registry) add(v *VisibleItem) {
	r.items[v.Annotation] = v
}

func (r *registry) remove(a *Annotation) {
	delete(r.items, a)
}

func (r *registry) len() int {
	return len(r.items)
}
