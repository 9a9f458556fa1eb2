package danmaku

import (
	"context"
	"time"
)

// Rect is an axis-aligned box in overlay coordinates (pixels for graphical
// surfaces, cells for terminals).
type Rect struct {
	X, Y, W, H float64
}

// Right returns the trailing horizontal edge.
func (r Rect) Right() float64 { return r.X + r.W }

// RenderSpec is what the engine hands to a Surface when an annotation becomes
// visible.
type RenderSpec struct {
	Annotation *Annotation
	Lane       int
	Top        float64 // vertical offset of the lane
	LineHeight float64
	FontSize   int
	StartX     float64 // scroll items enter here; fixed items ignore it
	Duration   float64 // seconds
}

// Handle is the live visual of one visible item.
type Handle interface {
	// Bounds reports the current geometry of the item.
	Bounds() Rect
	// Start begins the item's animation (scroll) or display timer (fixed).
	Start()
	Pause()
	Resume()
	// Done reports whether the animation has finished or never started.
	Done() bool
	// Release removes the visual. It must be safe to call once per handle.
	Release()
}

// EventKind identifies a notification delivered by a collaborator.
type EventKind int

const (
	EventResize EventKind = iota
	EventVisibility
	EventPlay
	EventPause
	EventSeek
)

func (k EventKind) String() string {
	switch k {
	case EventResize:
		return "resize"
	case EventVisibility:
		return "visibility"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventSeek:
		return "seek"
	}
	return "unknown"
}

// Event is a notification from a Surface or Playback source.
type Event struct {
	Kind EventKind
	Time float64 // playback time for seek events
}

// Subscription is a handle on a stream of events. Close must stop delivery;
// the engine calls it exactly once on detach.
type Subscription interface {
	Events() <-chan Event
	Close()
}

// Surface is the overlay placed above the video.
type Surface interface {
	// Size reports the available overlay area.
	Size() (width, height float64)
	// Render creates a visual for an annotation that has been given a lane.
	Render(spec RenderSpec) Handle
	// SetVisible shows or hides the overlay as a whole.
	SetVisible(visible bool)
	// Subscribe delivers resize and visibility notifications.
	Subscribe() Subscription
	// Close destroys the overlay.
	Close()
}

// Playback is the video clock the engine follows.
type Playback interface {
	CurrentTime() float64
	Paused() bool
	// Subscribe delivers play, pause and seek notifications.
	Subscribe() Subscription
}

// Payload is the result of fetching an annotation source. Either Tuples is
// set (pre-parsed) or Raw is handed to the Decoder for the requested format.
type Payload struct {
	Tuples []Tuple
	Raw    []byte
}

// Fetcher retrieves an annotation source by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Payload, error)
}

// DecodeResult is what a Decoder produces. A non-zero Code is a failure.
type DecodeResult struct {
	Code int
	Data []Tuple
}

// Decoder parses a raw payload into tuples.
type Decoder interface {
	Decode(raw []byte) (DecodeResult, error)
}

// Ticker is the repeating timer that drives the scheduler.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// NewTickerFunc creates a Ticker firing every d.
type NewTickerFunc func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}
