// Command danmaku-term plays an annotation source as a scrolling overlay in
// the terminal, driven by a wall-clock playback timer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"

	"danmaku-overlay/internal/danmaku"
	"danmaku-overlay/internal/danmaku/format"
	"danmaku-overlay/internal/platform/config"
	"danmaku-overlay/internal/platform/logger"
	"danmaku-overlay/internal/source"
	"danmaku-overlay/internal/surface/term"
	"danmaku-overlay/internal/surface/virtual"
)

const (
	frameInterval = 33 * time.Millisecond
	seekStep      = 5.0
)

var errQuit = errors.New("quit")

var (
	srcFlag      = flag.String("src", "", "annotation source: URL, file path or file:// URL")
	formatFlag   = flag.String("format", format.Native, "source format: native or bilibili")
	durationFlag = flag.Float64("duration", 0, "exit after this many seconds of playback (0 runs until q)")
	logFlag      = flag.String("log", "", "append logs to this file")
)

func main() {
	flag.Parse()
	_ = config.Load()

	if *srcFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: danmaku-term -src <url|file> [-format native|bilibili] [-duration s]")
		os.Exit(2)
	}

	log, closeLog, err := openLog(*logFlag, config.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	engineCfg, err := config.LoadEngine(config.GetEnv("DANMAKU_CONFIG", "danmaku.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine config: %v\n", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize terminal: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize terminal: %v\n", err)
		os.Exit(1)
	}

	err = run(screen, engineCfg, log)
	screen.Fini()
	if err != nil {
		fmt.Fprintf(os.Stderr, "danmaku-term: %v\n", err)
		os.Exit(1)
	}
}

func openLog(path, level string) (*slog.Logger, func(), error) {
	if path == "" {
		return logger.NewWithWriter(io.Discard, level, "text"), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return logger.NewWithWriter(f, level, "text"), func() { f.Close() }, nil
}

func run(screen tcell.Screen, engineCfg config.Engine, log *slog.Logger) error {
	fetcher := source.NewHTTPFetcher(nil)
	fetcher.AllowLocal = true

	p := &player{
		screen: screen,
		surf:   term.New(screen),
		clock:  virtual.NewClock(nil),
		status: "loading " + *srcFlag,
	}
	p.engine = danmaku.New(danmaku.Config{
		Options:  term.Options(engineCfg.Options()),
		Fetcher:  fetcher,
		Decoders: format.Decoders(log),
		Logger:   log,
	})
	defer p.engine.Close()

	if err := p.engine.Attach(p.surf, p.clock); err != nil {
		return err
	}
	if err := p.engine.Show(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return p.load(ctx) })
	g.Go(p.input)
	g.Go(func() error { return p.draw(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		// Unblocks PollEvent in the input loop.
		return screen.PostEvent(tcell.NewEventInterrupt(nil))
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}
