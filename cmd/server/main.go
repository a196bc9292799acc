package main

import (
	"context"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/jbataille/visio/internal/adapters/http"
	wssignal "github.com/jbataille/visio/internal/adapters/signal"
	"github.com/jbataille/visio/internal/app"
	"github.com/jbataille/visio/internal/auth"
	"github.com/jbataille/visio/internal/config"
	"github.com/jbataille/visio/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := storage.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	users := storage.NewUsers(db)
	meetings := storage.NewMeetings(db)
	recordings := storage.NewRecordings(db)

	coordinator := app.NewCoordinator(meetings)
	chat := app.NewChatBoard()
	notifier := app.NewNotifier(cfg.NotificationRetention)
	recorder, err := app.NewRecorder(cfg.RecordingsDir, cfg.MaxRecordingDuration, recordings)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init recorder")
	}

	registry := app.NewRegistry()
	tokens := auth.NewManager(cfg.Secret, cfg.TokenTTL)
	ws := wssignal.NewController(coordinator, chat, recorder, notifier, registry, tokens, cfg.ReadLimit, cfg.PingPeriod)

	api := &router.API{
		Coordinator: coordinator,
		Recorder:    recorder,
		Notifier:    notifier,
		Tokens:      tokens,
		Users:       users,
		Meetings:    meetings,
		Recordings:  recordings,
	}

	sweeper := cron.New()
	_, _ = sweeper.AddFunc("@hourly", func() {
		chat.Cleanup(cfg.ChatRetention)
	})
	_, _ = sweeper.AddFunc("@daily", func() {
		notifier.Sweep()
	})
	_, _ = sweeper.AddFunc("@daily", func() {
		cutoff := time.Now().Add(-cfg.RecordingRetention)
		paths, err := recordings.DeleteOlderThan(context.Background(), cutoff)
		if err != nil {
			log.Error().Err(err).Msg("recording retention sweep")
			return
		}
		for _, path := range paths {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Error().Err(err).Str("path", path).Msg("unlink expired recording")
			}
		}
	})
	sweeper.Start()
	defer sweeper.Stop()

	r := router.SetupRouter(ctx, cfg, api, ws)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &nethttp.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("visio server started")
		if err := srv.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
