package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"MarketDashboard/internal/cache"
	"MarketDashboard/internal/config"
	"MarketDashboard/internal/market"
	"MarketDashboard/internal/notifier"
	"MarketDashboard/internal/recorder"
	"MarketDashboard/internal/scheduler"
	"MarketDashboard/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with cache warm-up and alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().Bool("offline", false, "serve mock data instead of calling providers")
}

func serve(parent context.Context, cfg *config.Config) error {
	log.Info("market dashboard starting...")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init recorder
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warnf("init sqlite recorder failed, using noop: %v", err)
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	// Init Telegram notifier
	var n notifier.Notifier = notifier.NoopNotifier{}
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		n = tn
	}

	svc, err := market.New(cfg, market.NewHTTPClient(cfg), market.Options{
		Cache:    cache.New(),
		Recorder: rec,
		Notifier: n,
	})
	if err != nil {
		return err
	}
	if cfg.Offline {
		log.Warn("offline mode: serving mock data")
	}

	sched := scheduler.NewScheduler(ctx, svc, cfg.Database.Retention)
	if err := sched.RegisterAll(cfg.Schedule.WarmCron, cfg.Schedule.PruneCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()
	go sched.RunWarmNow()

	if tn != nil && cfg.Telegram.Commands {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	addr := net.JoinHostPort("", cfg.Server.Port)
	log.Infof("listening on %s, instruments %v", addr, svc.Keys())
	err = server.New(svc).ListenAndServe(ctx, addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("market dashboard stopped")
	return nil
}
