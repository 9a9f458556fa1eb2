package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"danmaku-overlay/internal/danmaku"
	"danmaku-overlay/internal/danmaku/format"
	"danmaku-overlay/internal/platform/metrics"
	"danmaku-overlay/internal/surface/virtual"
)

// ErrInvalidRequest is returned for malformed or out-of-range input.
var ErrInvalidRequest = errors.New("invalid request")

// Config holds what every new session is built from.
type Config struct {
	Options   danmaku.Options
	Width     float64
	Height    float64
	Fetcher   danmaku.Fetcher
	Decoders  map[string]danmaku.Decoder
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	NewTicker danmaku.NewTickerFunc
	Now       func() time.Time
}

// Service creates sessions and applies control operations to their engines.
type Service struct {
	repo Repository
	cfg  Config
	log  *slog.Logger
	seq  atomic.Uint64
}

// NewService returns a Service that stores sessions in repo.
func NewService(repo Repository, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{repo: repo, cfg: cfg, log: cfg.Logger}
}

// Create starts a new detached session.
func (s *Service) Create(req CreateRequest) (*Session, error) {
	if req.Width < 0 || req.Height < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrInvalidRequest)
	}
	if req.Width == 0 {
		req.Width = s.cfg.Width
	}
	if req.Height == 0 {
		req.Height = s.cfg.Height
	}

	for {
		id := req.ID
		if id == "" {
			id = SessionID(fmt.Sprintf("s%d", s.seq.Add(1)))
		}
		sess := s.newSession(id, req.Width, req.Height)
		err := s.repo.Create(sess)
		if err == nil {
			s.log.Info("session created", slog.String("session_id", string(id)))
			return sess, nil
		}
		sess.Engine.Close()
		if req.ID != "" || !errors.Is(err, ErrSessionExists) {
			return nil, err
		}
	}
}

func (s *Service) newSession(id SessionID, width, height float64) *Session {
	engine := danmaku.New(danmaku.Config{
		Options:   s.cfg.Options,
		Fetcher:   s.cfg.Fetcher,
		Decoders:  s.cfg.Decoders,
		Logger:    s.log.With(slog.String("session_id", string(id))),
		Metrics:   s.cfg.Metrics,
		NewTicker: s.cfg.NewTicker,
	})
	return &Session{
		ID:        id,
		Engine:    engine,
		Clock:     virtual.NewClock(s.cfg.Now),
		CreatedAt: s.cfg.Now().UTC(),
		events:    newHub(),
		width:     width,
		height:    height,
	}
}

// Delete stops the session's engine and forgets it.
func (s *Service) Delete(id SessionID) error {
	sess, err := s.repo.Delete(id)
	if err != nil {
		return err
	}
	s.shutdown(sess)
	s.log.Info("session deleted", slog.String("session_id", string(id)))
	return nil
}

func (s *Service) shutdown(sess *Session) {
	sess.Engine.Close()
	sess.events.close()
	sess.mu.Lock()
	sess.surface = nil
	sess.mu.Unlock()
}

// Close deletes every session.
func (s *Service) Close() {
	for _, sess := range s.repo.List() {
		if _, err := s.repo.Delete(sess.ID); err == nil {
			s.shutdown(sess)
		}
	}
}

// Session returns the session with the given id.
func (s *Service) Session(id SessionID) (*Session, error) {
	return s.repo.Get(id)
}

// Get returns a view of the session.
func (s *Service) Get(id SessionID) (View, error) {
	sess, err := s.repo.Get(id)
	if err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

func (s *Service) view(sess *Session) View {
	w, h := sess.Size()
	opts := sess.Engine.Options()
	v := View{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Width:     w,
		Height:    h,
		Visible:   sess.Engine.IsVisible(),
		Playback:  PlaybackView{Time: sess.Clock.CurrentTime(), Paused: sess.Clock.Paused()},
		Options:   OptionsView{FontSize: opts.FontSize, LineMargin: opts.LineMargin, Speed: opts.Speed},
		Engine:    sess.Engine.Snapshot(),
	}
	if surf := sess.Surface(); surf != nil {
		v.Items = surf.Items()
	}
	return v
}

// Attach gives the session a fresh surface of its current size.
func (s *Service) Attach(id SessionID) (View, error) {
	return s.apply(id, func(sess *Session) error {
		w, h := sess.Size()
		surf := virtual.NewSurface(w, h,
			virtual.WithClock(s.cfg.Now),
			virtual.WithRenderListener(sess.events.broadcast),
		)
		if err := sess.Engine.Attach(surf, sess.Clock); err != nil {
			return err
		}
		sess.mu.Lock()
		sess.surface = surf
		sess.mu.Unlock()
		return nil
	})
}

// Detach tears the overlay down. The loaded collection is discarded.
func (s *Service) Detach(id SessionID) (View, error) {
	return s.apply(id, func(sess *Session) error {
		if err := sess.Engine.Detach(); err != nil {
			return err
		}
		sess.mu.Lock()
		sess.surface = nil
		sess.mu.Unlock()
		return nil
	})
}

// Show makes a hidden overlay visible. Like every lifecycle operation it is
// a no-op outside its legal source state.
func (s *Service) Show(id SessionID) (View, error) {
	return s.apply(id, func(sess *Session) error { return sess.Engine.Show() })
}

// Hide clears and hides the overlay.
func (s *Service) Hide(id SessionID) (View, error) {
	return s.apply(id, func(sess *Session) error { return sess.Engine.Hide() })
}

// Pause pauses the session clock and freezes visible items.
func (s *Service) Pause(id SessionID) (View, error) {
	return s.apply(id, func(sess *Session) error {
		sess.Clock.Pause()
		return sess.Engine.Pause()
	})
}

// Resume restarts the session clock and the overlay.
func (s *Service) Resume(id SessionID) (View, error) {
	return s.apply(id, func(sess *Session) error {
		sess.Clock.Play()
		return sess.Engine.Resume()
	})
}

// Play starts the session clock only; the engine follows through its
// playback subscription.
func (s *Service) Play(id SessionID) (View, error) {
	return s.apply(id, func(sess *Session) error {
		sess.Clock.Play()
		return nil
	})
}

// Seek moves the clock to t and reschedules.
func (s *Service) Seek(id SessionID, t float64) (View, error) {
	if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return View{}, fmt.Errorf("%w: seek time %g", ErrInvalidRequest, t)
	}
	return s.apply(id, func(sess *Session) error {
		sess.Clock.SeekTo(t)
		return sess.Engine.Seek(t)
	})
}

// Load fetches and installs an annotation source. format defaults to native.
func (s *Service) Load(ctx context.Context, id SessionID, req LoadRequest) (View, error) {
	if req.URL == "" {
		return View{}, fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}
	if req.Format == "" {
		req.Format = format.Native
	}
	return s.apply(id, func(sess *Session) error {
		return sess.Engine.Load(ctx, req.URL, req.Format)
	})
}

// Resize changes the overlay size. The engine recomputes lanes when the
// surface reports the change.
func (s *Service) Resize(id SessionID, width, height float64) (View, error) {
	if width <= 0 || height <= 0 {
		return View{}, fmt.Errorf("%w: size must be positive", ErrInvalidRequest)
	}
	return s.apply(id, func(sess *Session) error {
		sess.mu.Lock()
		sess.width, sess.height = width, height
		surf := sess.surface
		sess.mu.Unlock()
		if surf != nil {
			surf.Resize(width, height)
		}
		return nil
	})
}

// SetFontSize changes the font size, which must be a positive integer.
func (s *Service) SetFontSize(id SessionID, v float64) (View, error) {
	if v != math.Trunc(v) {
		return View{}, fmt.Errorf("%w: font size must be an integer", ErrInvalidRequest)
	}
	return s.apply(id, func(sess *Session) error { return sess.Engine.SetFontSize(int(v)) })
}

// SetLineMargin changes the scroll lane margin.
func (s *Service) SetLineMargin(id SessionID, v float64) (View, error) {
	return s.apply(id, func(sess *Session) error { return sess.Engine.SetLineMargin(v) })
}

func (s *Service) apply(id SessionID, fn func(*Session) error) (View, error) {
	sess, err := s.repo.Get(id)
	if err != nil {
		return View{}, err
	}
	if err := fn(sess); err != nil {
		return View{}, err
	}
	return s.view(sess), nil
}

// StreamEvents sends the session's current items to conn, then every render
// event until the peer disconnects or the session is deleted.
func (s *Service) StreamEvents(sess *Session, conn *websocket.Conn) {
	var initial []virtual.RenderEvent
	if surf := sess.Surface(); surf != nil {
		initial = append(initial, virtual.RenderEvent{Type: virtual.RenderVisibility, Visible: surf.Visible()})
		for _, it := range surf.Items() {
			initial = append(initial, virtual.RenderEvent{
				Type:   virtual.RenderCreate,
				ID:     it.ID,
				Text:   it.Text,
				Color:  it.Color,
				Mode:   it.Mode,
				Lane:   it.Lane,
				Top:    it.Bounds.Y,
				StartX: it.Bounds.X,
				Width:  it.Bounds.W,
			})
		}
	}
	s.log.Debug("event stream opened", slog.String("session_id", string(sess.ID)))
	sess.events.serve(conn, initial)
	s.log.Debug("event stream closed", slog.String("session_id", string(sess.ID)))
}

// ActiveSessionCount returns the number of attached sessions.
func (s *Service) ActiveSessionCount() int {
	return s.repo.ActiveSessionCount()
}

// VisibleItems returns the number of items on screen across all sessions.
func (s *Service) VisibleItems() int {
	n := 0
	for _, sess := range s.repo.List() {
		if surf := sess.Surface(); surf != nil {
			n += len(surf.Items())
		}
	}
	return n
}
