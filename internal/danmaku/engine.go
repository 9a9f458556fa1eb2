package danmaku

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"danmaku-overlay/internal/platform/metrics"
)

// State is the lifecycle state of an Engine.
type State int

const (
	// StateEmpty means no surface is attached.
	StateEmpty State = iota
	// StateHidden means a surface is attached but the scheduler is idle.
	StateHidden
	// StatePlaying means the tick timer is armed.
	StatePlaying
	// StatePaused means visible items are frozen and the scheduler is idle.
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateHidden:
		return "hidden"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for c := StateEmpty; c <= StatePaused; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

var (
	// ErrClosed is returned by operations on an Engine after Close.
	ErrClosed = errors.New("engine closed")
	// ErrLoadFailed wraps every error that aborts a load.
	ErrLoadFailed = errors.New("load failed")
	// ErrLoadAborted is returned when the engine was detached or re-attached
	// while a load was in flight; the result is discarded.
	ErrLoadAborted = errors.New("load aborted by detach")
	// ErrUnknownFormat is returned when no decoder is registered for a format.
	ErrUnknownFormat = errors.New("unknown source format")
	// ErrNoFetcher is returned by Load when the engine has no Fetcher.
	ErrNoFetcher = errors.New("no fetcher configured")
)

// Config holds the dependencies of an Engine. Logger defaults to
// slog.Default, NewTicker to NewTimeTicker; Metrics may be nil.
type Config struct {
	Options   Options
	Fetcher   Fetcher
	Decoders  map[string]Decoder
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	NewTicker NewTickerFunc
}

// Snapshot describes the engine at one instant.
type Snapshot struct {
	State  State      `json:"state"`
	Lanes  int        `json:"lanes"`
	Loaded int        `json:"loaded"`
	Items  []ItemView `json:"items"`
}

// Engine owns the lifecycle, the lanes and the scheduler for one overlay.
// All state is confined to a single loop goroutine; exported methods post
// work to it and wait for the result, so they are safe for concurrent use.
type Engine struct {
	opts      Options
	log       *slog.Logger
	metrics   *metrics.Metrics
	fetcher   Fetcher
	decoders  map[string]Decoder
	newTicker NewTickerFunc

	cmds      chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Loop-owned state below.
	state    State
	epoch    uint64
	surface  Surface
	playback Playback
	surfSub  Subscription
	playSub  Subscription
	surfC    <-chan Event
	playC    <-chan Event
	ticker   Ticker
	tickC    <-chan time.Time
	sched    *scheduler
}

// New starts an Engine in StateEmpty.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	newTicker := cfg.NewTicker
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	decoders := make(map[string]Decoder, len(cfg.Decoders))
	for name, d := range cfg.Decoders {
		decoders[name] = d
	}
	e := &Engine{
		opts:      cfg.Options.withDefaults(),
		log:       log,
		metrics:   cfg.Metrics,
		fetcher:   cfg.Fetcher,
		decoders:  decoders,
		newTicker: newTicker,
		cmds:      make(chan func()),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	e.sched = newScheduler(&e.opts, log, cfg.Metrics)
	go e.run()
	return e
}

func (e *Engine) run() {
	defer close(e.done)
	for {
		select {
		case fn := <-e.cmds:
			fn()
		case <-e.tickC:
			e.tick()
		case ev, ok := <-e.surfC:
			if !ok {
				e.surfC = nil
				continue
			}
			e.onSurfaceEvent(ev)
		case ev, ok := <-e.playC:
			if !ok {
				e.playC = nil
				continue
			}
			e.onPlaybackEvent(ev)
		case <-e.quit:
			e.detach()
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (e *Engine) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case e.cmds <- func() { defer close(finished); fn() }:
	case <-e.done:
		return ErrClosed
	}
	<-finished
	return nil
}

// Close detaches and stops the loop. It is safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.quit) })
	<-e.done
}

// Attach binds the engine to a surface and playback source and enters
// StateHidden. A previously attached surface is detached first.
func (e *Engine) Attach(surface Surface, playback Playback) error {
	return e.do(func() { e.attach(surface, playback) })
}

// Detach tears everything down and returns to StateEmpty.
func (e *Engine) Detach() error {
	return e.do(e.detach)
}

// Show starts scheduling. Only legal from StateHidden.
func (e *Engine) Show() error { return e.do(e.show) }

// Hide clears the overlay and stops scheduling. Only legal from
// StatePlaying or StatePaused.
func (e *Engine) Hide() error { return e.do(e.hide) }

// Pause freezes visible items. Only legal from StatePlaying.
func (e *Engine) Pause() error { return e.do(e.pause) }

// Resume continues from StatePaused.
func (e *Engine) Resume() error { return e.do(e.resume) }

// Seek drops the cached cursor and, while playing, schedules synchronously
// at time t.
func (e *Engine) Seek(t float64) error {
	return e.do(func() { e.seek(t) })
}

// SetFontSize changes the font size and recomputes the lane set.
func (e *Engine) SetFontSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFontSize, n)
	}
	return e.do(func() {
		e.opts.FontSize = n
		e.sched.resize()
	})
}

// SetLineMargin changes the minimum gap kept behind the newest scroll item of
// a lane.
func (e *Engine) SetLineMargin(n float64) error {
	if n < 0 {
		return fmt.Errorf("%w: %g", ErrNegativeMargin, n)
	}
	return e.do(func() { e.opts.LineMargin = n })
}

// SetSpeed changes the scroll speed for items activated afterwards.
func (e *Engine) SetSpeed(pxPerSecond float64) error {
	if pxPerSecond <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidSpeed, pxPerSecond)
	}
	return e.do(func() { e.opts.Speed = pxPerSecond })
}

// IsVisible reports whether the overlay is shown (playing or paused).
func (e *Engine) IsVisible() bool {
	s := e.State()
	return s == StatePlaying || s == StatePaused
}

// State returns the current lifecycle state. A closed engine is empty.
func (e *Engine) State() State {
	s := StateEmpty
	_ = e.do(func() { s = e.state })
	return s
}

// Options returns the current tunables.
func (e *Engine) Options() Options {
	var o Options
	if err := e.do(func() { o = e.opts }); err != nil {
		return e.opts
	}
	return o
}

// Snapshot returns the state and every visible item.
func (e *Engine) Snapshot() Snapshot {
	var snap Snapshot
	_ = e.do(func() {
		snap = Snapshot{
			State:  e.state,
			Lanes:  e.sched.lanes.Len(),
			Loaded: e.sched.coll.Len(),
			Items:  e.sched.views(),
		}
	})
	return snap
}

// Load fetches url, decodes it with the decoder registered for format and
// swaps the collection in. While the fetch runs a playing or paused engine
// is hidden; afterwards the previous state is restored whether or not the
// load succeeded. A detach during the fetch discards the result.
func (e *Engine) Load(ctx context.Context, url, format string) error {
	var prior State
	var epoch uint64
	if err := e.do(func() {
		prior, epoch = e.state, e.epoch
		if prior == StatePlaying || prior == StatePaused {
			e.hide()
		}
	}); err != nil {
		return err
	}

	coll, loadErr := e.fetch(ctx, url, format)

	var aborted bool
	if err := e.do(func() {
		if e.epoch != epoch {
			aborted = true
			return
		}
		if loadErr == nil {
			e.sched.setCollection(coll)
		}
		e.restore(prior)
	}); err != nil {
		return err
	}

	switch {
	case aborted:
		e.log.Debug("load result discarded", slog.String("url", url))
		return ErrLoadAborted
	case loadErr != nil:
		e.log.Warn("load failed", slog.String("url", url), slog.String("format", format), slog.String("error", loadErr.Error()))
		if e.metrics != nil {
			e.metrics.IncLoadFailures()
		}
		return loadErr
	}
	e.log.Info("annotations loaded", slog.String("url", url), slog.Int("count", coll.Len()))
	if e.metrics != nil {
		e.metrics.ObserveLoad(coll.Len())
	}
	return nil
}

// fetch runs outside the loop goroutine; it touches no engine state other
// than the immutable fetcher and decoders.
func (e *Engine) fetch(ctx context.Context, url, format string) (*Collection, error) {
	if e.fetcher == nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, ErrNoFetcher)
	}
	payload, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	tuples := payload.Tuples
	if tuples == nil {
		dec, ok := e.decoders[format]
		if !ok {
			return nil, fmt.Errorf("%w: %w: %q", ErrLoadFailed, ErrUnknownFormat, format)
		}
		res, err := dec.Decode(payload.Raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}
		if res.Code != 0 {
			return nil, fmt.Errorf("%w: decoder returned code %d", ErrLoadFailed, res.Code)
		}
		tuples = res.Data
	}
	coll, err := NewCollection(tuples)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return coll, nil
}

func (e *Engine) setState(s State) {
	if e.state != s {
		e.log.Debug("lifecycle transition", slog.String("from", e.state.String()), slog.String("to", s.String()))
	}
	e.state = s
}

func (e *Engine) attach(surface Surface, playback Playback) {
	if e.state != StateEmpty {
		e.detach()
	}
	e.epoch++
	e.surface = surface
	e.playback = playback
	e.surfSub = surface.Subscribe()
	e.playSub = playback.Subscribe()
	e.surfC = e.surfSub.Events()
	e.playC = e.playSub.Events()
	e.sched.surface = surface
	e.sched.resize()
	surface.SetVisible(false)
	e.setState(StateHidden)
}

func (e *Engine) detach() {
	if e.state == StateEmpty {
		return
	}
	e.disarm()
	e.sched.reset()
	e.sched.lanes.Resize(0, e.sched.release)
	e.sched.setCollection(nil)
	e.sched.surface = nil

	e.surfSub.Close()
	e.playSub.Close()
	e.surfSub, e.playSub = nil, nil
	e.surfC, e.playC = nil, nil
	e.surface.Close()
	e.surface, e.playback = nil, nil

	e.epoch++
	e.setState(StateEmpty)
}

func (e *Engine) show() {
	if e.state != StateHidden {
		return
	}
	e.surface.SetVisible(true)
	e.setState(StatePlaying)
	e.arm()
	if e.playback.Paused() {
		e.pause()
	}
}

func (e *Engine) hide() {
	if e.state != StatePlaying && e.state != StatePaused {
		return
	}
	e.disarm()
	e.sched.reset()
	e.surface.SetVisible(false)
	e.setState(StateHidden)
}

func (e *Engine) pause() {
	if e.state != StatePlaying {
		return
	}
	e.disarm()
	e.sched.pauseAll()
	e.setState(StatePaused)
}

func (e *Engine) resume() {
	if e.state != StatePaused {
		return
	}
	e.sched.resumeAll()
	e.setState(StatePlaying)
	e.arm()
}

func (e *Engine) restore(prior State) {
	switch prior {
	case StatePlaying:
		e.show()
	case StatePaused:
		e.show()
		e.pause()
	}
}

func (e *Engine) seek(t float64) {
	e.sched.clearCursor()
	if e.state == StatePlaying {
		e.sched.process(t)
	}
}

// arm starts the tick timer unless one is already running.
func (e *Engine) arm() {
	if e.ticker != nil {
		return
	}
	e.ticker = e.newTicker(e.opts.TickInterval)
	e.tickC = e.ticker.C()
}

func (e *Engine) disarm() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
	e.tickC = nil
	e.sched.clearCursor()
}

func (e *Engine) tick() {
	if e.state != StatePlaying {
		return
	}
	now := e.playback.CurrentTime()
	e.sched.process(now)
	e.sched.cleanup(now)
}

func (e *Engine) onSurfaceEvent(ev Event) {
	switch ev.Kind {
	case EventResize, EventVisibility:
		e.sched.resize()
	}
}

func (e *Engine) onPlaybackEvent(ev Event) {
	switch ev.Kind {
	case EventPlay:
		e.resume()
	case EventPause:
		e.pause()
	case EventSeek:
		e.seek(ev.Time)
	}
}
