// Package virtual provides a headless overlay surface and playback clock.
// Geometry is derived from elapsed wall time, so a server can run the
// danmaku engine without a browser and report where every item would be.
package virtual

import (
	"sync"

	"danmaku-overlay/internal/danmaku"
)

const eventBufferSize = 16

// feed fans events out to subscribers. Sends never block; a subscriber
// whose buffer is full misses the event.
type feed struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

func newFeed() *feed {
	return &feed{subs: make(map[*subscription]struct{})}
}

func (f *feed) subscribe() *subscription {
	s := &subscription{f: f, ch: make(chan danmaku.Event, eventBufferSize)}
	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()
	return s
}

func (f *feed) send(ev danmaku.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		select {
		case s.ch <- ev:
		default:
		}
	}
}

func (f *feed) remove(s *subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[s]; !ok {
		return
	}
	delete(f.subs, s)
	close(s.ch)
}

func (f *feed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		delete(f.subs, s)
		close(s.ch)
	}
}

func (f *feed) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type subscription struct {
	f  *feed
	ch chan danmaku.Event
}

func (s *subscription) Events() <-chan danmaku.Event { return s.ch }

func (s *subscription) Close() { s.f.remove(s) }
