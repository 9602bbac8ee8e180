package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tarekmz/stopgame/go/internal/coordinator"
	"github.com/tarekmz/stopgame/go/internal/events"
	"github.com/tarekmz/stopgame/go/internal/gateway"
	"github.com/tarekmz/stopgame/go/internal/judge"
	"github.com/tarekmz/stopgame/go/internal/stats"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Stats store is best effort: run without it if Postgres is unreachable.
	var winStore *stats.App
	if cfg.Stats.Enabled {
		pool, err := setupDatabase(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("stats store unavailable, win counts disabled")
		} else {
			defer pool.Close()
			winStore = stats.NewApp(stats.NewRepository(pool))
		}
	}

	var mirror *events.Publisher
	if cfg.NATS.URL != "" {
		mirror, err = events.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			log.Warn().Err(err).Msg("event mirror unavailable, continuing without it")
			mirror = nil
		} else {
			defer mirror.Close()
		}
	}

	judgeAdapter := judge.NewAdapter(cfg.Judge.BaseURL, os.Getenv("JUDGE_API_KEY"), cfg.Judge.Model)
	if cfg.Judge.TimeoutSec > 0 {
		judgeAdapter.SetTimeout(time.Duration(cfg.Judge.TimeoutSec) * time.Second)
	}

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	coordCfg := coordinator.DefaultConfig()
	coordCfg.GracePeriod = cfg.GracePeriod()
	coordCfg.RequireAllCorrect = cfg.RequireAllCorrect()
	coord := coordinator.New(ctx, coordCfg, judgeAdapter, winStore, cm, mirror)

	wsHandler := gateway.NewHandler(cm, coord)
	server := setupServer(cfg, wsHandler, coord)

	go cm.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
