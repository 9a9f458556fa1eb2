package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"danmaku-overlay/internal/danmaku/format"
	"danmaku-overlay/internal/platform/config"
	"danmaku-overlay/internal/platform/logger"
	"danmaku-overlay/internal/platform/metrics"
	"danmaku-overlay/internal/session"
	"danmaku-overlay/internal/source"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	enginePath := config.GetEnv("DANMAKU_CONFIG", "danmaku.yaml")

	log := logger.New(logLevel, logFormat)

	engineCfg, err := config.LoadEngine(enginePath)
	if err != nil {
		log.Error("engine config", "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	repo := session.NewInMemoryRepository()
	svc := session.NewService(repo, session.Config{
		Options:  engineCfg.Options(),
		Width:    engineCfg.Width,
		Height:   engineCfg.Height,
		Fetcher:  source.NewHTTPFetcher(nil),
		Decoders: format.Decoders(log),
		Logger:   log,
		Metrics:  met,
	})
	defer svc.Close()
	h := session.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetActiveSessions(svc.ActiveSessionCount())
			met.SetVisibleItems(svc.VisibleItems())
		}).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting",
			"port", port,
			"log_level", logLevel,
			"font_size", engineCfg.FontSize,
			"overlay", [2]float64{engineCfg.Width, engineCfg.Height},
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		svc.Close()
		os.Exit(1)
	}

	log.Info("server stopped")
}
