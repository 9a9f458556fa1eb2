package virtual

import (
	"sync"
	"time"

	"danmaku-overlay/internal/danmaku"
)

// Clock is a playback source driven by wall time. It starts paused at zero.
type Clock struct {
	mu     sync.Mutex
	now    func() time.Time
	base   float64
	anchor time.Time
	paused bool
	feed   *feed
}

// NewClock returns a paused clock. now defaults to time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now, paused: true, feed: newFeed()}
}

// CurrentTime implements danmaku.Playback.
func (c *Clock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked()
}

func (c *Clock) currentLocked() float64 {
	if c.paused {
		return c.base
	}
	return c.base + c.now().Sub(c.anchor).Seconds()
}

// Paused implements danmaku.Playback.
func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Subscribe implements danmaku.Playback.
func (c *Clock) Subscribe() danmaku.Subscription {
	return c.feed.subscribe()
}

// Play starts the clock and notifies subscribers.
func (c *Clock) Play() {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		return
	}
	c.anchor = c.now()
	c.paused = false
	c.mu.Unlock()
	c.feed.send(danmaku.Event{Kind: danmaku.EventPlay})
}

// Pause stops the clock and notifies subscribers.
func (c *Clock) Pause() {
	c.mu.Lock()
	if c.paused {
		c.mu.Unlock()
		return
	}
	c.base = c.currentLocked()
	c.paused = true
	c.mu.Unlock()
	c.feed.send(danmaku.Event{Kind: danmaku.EventPause})
}

// SeekTo moves the clock to t seconds and notifies subscribers.
func (c *Clock) SeekTo(t float64) {
	if t < 0 {
		t = 0
	}
	c.mu.Lock()
	c.base = t
	c.anchor = c.now()
	c.mu.Unlock()
	c.feed.send(danmaku.Event{Kind: danmaku.EventSeek, Time: t})
}
