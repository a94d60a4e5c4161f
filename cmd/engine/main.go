package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"YieldSentinel/internal/admission"
	"YieldSentinel/internal/config"
	"YieldSentinel/internal/distribution"
	"YieldSentinel/internal/lifecycle"
	"YieldSentinel/internal/notifier"
	"YieldSentinel/internal/scheduler"
	"YieldSentinel/internal/server"
	"YieldSentinel/internal/settlement"
	"YieldSentinel/internal/store"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	log.Info().Msg("YieldSentinel starting")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	// Init store, falling back to in-memory when SQLite is unavailable
	var st store.Store
	if sq, err := store.NewSQLiteStore(cfg.Database.SQLitePath, log); err != nil {
		log.Warn().Err(err).Msg("init sqlite store failed, using in-memory store")
		st = store.NewMemoryStore()
	} else {
		st = sq
	}
	defer st.Close()

	// Init notifier
	var nt notifier.Notifier
	if cfg.Notifier.WebhookURL != "" {
		nt = notifier.NewWebhookNotifier(cfg.Notifier.WebhookURL, log)
	} else {
		log.Warn().Msg("no webhook URL configured, notifications disabled")
		nt = notifier.NewNoopNotifier()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire engines
	refresher := lifecycle.NewRefresher(st, log)
	adm := admission.NewService(st, refresher, nt, log)
	dist := distribution.NewEngine(st, log)
	settle := settlement.NewEngine(st, nt, log)

	// Init scheduler
	sched := scheduler.New(ctx, dist, settle, log)
	if err := sched.Register(cfg.Schedule.DistributionCron, cfg.Schedule.SettlementCron); err != nil {
		log.Fatal().Err(err).Msg("register cron jobs")
	}
	sched.Start()
	defer sched.Stop()

	// Init HTTP server
	srv := server.New(server.Config{
		ListenAddr: cfg.Server.ListenAddr,
		AdminToken: cfg.Server.AdminToken,
		Log:        log,
		Store:      st,
		Refresher:  refresher,
		Admission:  adm,
		Scheduler:  sched,
	})
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Optional: run a distribution pass immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, executing distribution pass now")
		go func() {
			if _, err := sched.TriggerDistributionNow(); err != nil {
				log.Error().Err(err).Msg("startup distribution pass failed")
			}
		}()
	}

	log.Info().Msg("YieldSentinel is running")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown")
	}
	log.Info().Msg("YieldSentinel stopped")
}
