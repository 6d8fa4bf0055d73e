// Package server assembles the service: Redis-backed job store, artifact
// cache with its sweep loop, yt-dlp fetcher, job state machine and the
// HTTP surface, plus graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mediagrab/internal/api"
	"mediagrab/internal/config"
	"mediagrab/internal/core/artifact"
	"mediagrab/internal/core/download"
	"mediagrab/internal/core/event"
	"mediagrab/internal/core/job"
	"mediagrab/internal/core/transcribe"
	"mediagrab/internal/core/ytdlp"
	"mediagrab/internal/store"
)

func Run(ctx context.Context, cfg *config.Config) error {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if cfg.Redis.URL == "" {
		return fmt.Errorf("redis URL is required (set MG_REDIS_URL or redis.url in config)")
	}

	rdb, err := store.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer rdb.Close()

	jobTTL := config.Duration(cfg.Jobs.TTL, 72*time.Hour)
	jobStore := store.New(rdb, jobTTL)

	bus := event.NewBus()
	setupEventLogging(bus)

	cache := artifact.NewCache(
		config.Duration(cfg.Artifacts.Retention, 30*time.Minute),
		config.Duration(cfg.Artifacts.SweepInterval, 10*time.Minute),
		bus,
	)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go cache.Run(sweepCtx)

	fetcher := ytdlp.NewFetcher(cfg.YtDlp.Binary, cfg.YtDlp.DownloadDir, cfg.YtDlp.FallbackRuntime)
	downloads := download.NewService(fetcher, cache, bus)

	engine := transcribe.NewClient(cfg.Transcriber.URL, cfg.Transcriber.APIKey)
	jobs := job.NewService(
		jobStore,
		engine,
		bus,
		config.Duration(cfg.Jobs.ProcessingDelay, 150*time.Millisecond),
		config.Duration(cfg.Jobs.CompletionDelay, 250*time.Millisecond),
	)

	e := echo.New()
	handler := api.NewHandler(downloads, jobs, cache, jobStore)
	api.SetupRouter(e, handler, cfg.Auth.Token)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	return nil
}

func setupEventLogging(bus event.Bus) {
	bus.Subscribe(event.EventDownloadCompleted, func(_ context.Context, e event.Event) error {
		if p, ok := e.Payload.(event.DownloadEvent); ok {
			log.Info().Str("id", p.ID).Str("filename", p.Filename).Msg("download completed")
		}
		return nil
	})
	bus.Subscribe(event.EventDownloadFailed, func(_ context.Context, e event.Event) error {
		if p, ok := e.Payload.(event.DownloadEvent); ok {
			log.Warn().Str("url", p.URL).Str("error", p.Error).Msg("download failed")
		}
		return nil
	})
	bus.Subscribe(event.EventJobCreated, func(_ context.Context, e event.Event) error {
		if p, ok := e.Payload.(event.JobEvent); ok {
			log.Info().Str("job_id", p.JobID).Msg("job created")
		}
		return nil
	})
	bus.Subscribe(event.EventJobCompleted, func(_ context.Context, e event.Event) error {
		if p, ok := e.Payload.(event.JobEvent); ok {
			log.Info().Str("job_id", p.JobID).Msg("job completed")
		}
		return nil
	})
	bus.Subscribe(event.EventJobFailed, func(_ context.Context, e event.Event) error {
		if p, ok := e.Payload.(event.JobEvent); ok {
			log.Warn().Str("job_id", p.JobID).Str("error", p.Error).Msg("job failed")
		}
		return nil
	})
}
