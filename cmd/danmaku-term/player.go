package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"danmaku-overlay/internal/danmaku"
	"danmaku-overlay/internal/surface/term"
	"danmaku-overlay/internal/surface/virtual"
)

type player struct {
	screen tcell.Screen
	surf   *term.Surface
	clock  *virtual.Clock
	engine *danmaku.Engine

	mu     sync.Mutex
	status string
}

func (p *player) setStatus(s string) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// load fetches the source then starts the clock. A failed load is shown on
// the status row rather than ending the program.
func (p *player) load(ctx context.Context) error {
	if err := p.engine.Load(ctx, *srcFlag, *formatFlag); err != nil {
		p.setStatus(err.Error())
		return nil
	}
	p.setStatus("")
	p.clock.Play()
	return nil
}

func (p *player) input() error {
	for {
		switch ev := p.screen.PollEvent().(type) {
		case nil, *tcell.EventInterrupt:
			return nil
		case *tcell.EventResize:
			p.surf.Sync()
		case *tcell.EventKey:
			if err := p.handleKey(ev); err != nil {
				return err
			}
		}
	}
}

func (p *player) handleKey(ev *tcell.EventKey) error {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return errQuit
	case tcell.KeyLeft:
		p.clock.SeekTo(p.clock.CurrentTime() - seekStep)
	case tcell.KeyRight:
		p.clock.SeekTo(p.clock.CurrentTime() + seekStep)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return errQuit
		case ' ':
			if p.clock.Paused() {
				p.clock.Play()
			} else {
				p.clock.Pause()
			}
		case 'h':
			if p.engine.IsVisible() {
				return p.engine.Hide()
			}
			if err := p.engine.Show(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *player) draw(ctx context.Context) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		now := p.clock.CurrentTime()
		if *durationFlag > 0 && now >= *durationFlag {
			return errQuit
		}
		snap := p.engine.Snapshot()
		p.mu.Lock()
		msg := p.status
		p.mu.Unlock()
		p.surf.Draw(fmt.Sprintf(" %-7s %7.1fs  %d/%d on screen  %s",
			snap.State, now, len(snap.Items), snap.Loaded, msg))
	}
}
