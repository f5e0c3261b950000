package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/nvoss/relay/internal/adapters/http"
	"github.com/nvoss/relay/internal/config"
	"github.com/nvoss/relay/internal/connect"
	"github.com/nvoss/relay/internal/connect/gateway"
	"github.com/nvoss/relay/internal/notify"
	"github.com/nvoss/relay/internal/session"
	"github.com/nvoss/relay/internal/stats"
	"github.com/nvoss/relay/internal/store"
	"github.com/nvoss/relay/internal/voice/whip"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	db, err := store.Open(cfg.DatabasePath, cfg.DeviceName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	var reporter *stats.Reporter
	if cfg.RedisURL != "" {
		reporter, err = stats.New(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("stats disabled, redis unreachable")
			reporter = nil
		}
	}
	defer reporter.Close()

	hub := notify.NewHub()
	driver := whip.NewDriver(cfg.VoiceEndpoint)
	connector := connect.NewDialer(gateway.New(cfg.GatewayURL), cfg.ConnectRetries)

	manager := session.NewManager(driver, connector, db, hub, session.Config{
		InactivityTimeout: cfg.DisconnectTimeout,
		BridgeCapacity:    cfg.BridgeCapacity,
	})

	go reporter.Run(ctx, cfg.StatsInterval, manager.ActiveCount)

	r := router.SetupRouter(cfg, manager, hub)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("relay server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	manager.ShutdownAll()
	if err := reporter.SetActiveCount(shutdownCtx, 0); err != nil {
		log.Warn().Err(err).Msg("failed to reset active count")
	}

	log.Info().Msg("Server exited gracefully")
}
