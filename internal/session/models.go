package session

import (
	"sync"
	"time"

	"danmaku-overlay/internal/danmaku"
	"danmaku-overlay/internal/surface/virtual"
)

// SessionID uniquely identifies an overlay session.
type SessionID string

// Session pairs one danmaku engine with its virtual playback clock and the
// surface it is currently attached to. A detach closes the surface, so each
// attach gets a fresh one.
type Session struct {
	ID        SessionID
	Engine    *danmaku.Engine
	Clock     *virtual.Clock
	CreatedAt time.Time

	events *hub

	mu      sync.Mutex
	width   float64
	height  float64
	surface *virtual.Surface
}

// Surface returns the attached surface, or nil.
func (s *Session) Surface() *virtual.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// Size returns the overlay size used for the next attach.
func (s *Session) Size() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// CreateRequest is the body of POST /sessions. Zero sizes use the configured
// defaults; an empty id is generated.
type CreateRequest struct {
	ID     SessionID `json:"id"`
	Width  float64   `json:"width"`
	Height float64   `json:"height"`
}

// LoadRequest is the body of POST /sessions/{id}/load.
type LoadRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// SeekRequest is the body of POST /sessions/{id}/seek.
type SeekRequest struct {
	Time float64 `json:"time"`
}

// ResizeRequest is the body of POST /sessions/{id}/resize.
type ResizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ValueRequest carries a single numeric setting.
type ValueRequest struct {
	Value float64 `json:"value"`
}

// View is the JSON representation of a session.
type View struct {
	ID        SessionID           `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	Width     float64             `json:"width"`
	Height    float64             `json:"height"`
	Visible   bool                `json:"visible"`
	Playback  PlaybackView        `json:"playback"`
	Options   OptionsView         `json:"options"`
	Engine    danmaku.Snapshot    `json:"engine"`
	Items     []virtual.ItemState `json:"items,omitempty"`
}

// PlaybackView reports the session clock.
type PlaybackView struct {
	Time   float64 `json:"time"`
	Paused bool    `json:"paused"`
}

// OptionsView reports the engine tunables that can be changed over HTTP.
type OptionsView struct {
	FontSize   int     `json:"font_size"`
	LineMargin float64 `json:"line_margin"`
	Speed      float64 `json:"speed"`
}
