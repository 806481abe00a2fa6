package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/satsub/satsub/internal/config"
	"github.com/satsub/satsub/internal/core/application"
	"github.com/satsub/satsub/internal/infrastructure/metrics"
	service_interface "github.com/satsub/satsub/internal/interface"
	"github.com/satsub/satsub/internal/interface/web"
	log "github.com/sirupsen/logrus"
)

// nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	sentryEnabled := len(cfg.SentryDSN) > 0
	if sentryEnabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     cfg.SentryDSN,
			Release: version,
		}); err != nil {
			log.WithError(err).Fatal("failed to init sentry")
		}
		defer sentry.Flush(2 * time.Second)
	}

	log.Infof("starting satsub on %s...", cfg.Network)

	ctx := context.Background()

	repoManager, err := cfg.RepoManager()
	if err != nil {
		log.WithError(err).Fatal("failed to open db")
	}
	broadcastSvc, err := cfg.BroadcastService()
	if err != nil {
		log.WithError(err).Fatal("invalid satellite service")
	}
	swapSvc, err := cfg.SwapService()
	if err != nil {
		log.WithError(err).Fatal("invalid swap service")
	}
	walletSvc, err := cfg.WalletService(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to wallet")
	}
	metricsSvc := metrics.NewService()

	buildInfo := application.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	appSvc, err := application.NewService(
		buildInfo, cfg.AppConfig(), repoManager, broadcastSvc, swapSvc, walletSvc,
		cfg.SchedulerService(), metricsSvc,
	)
	if err != nil {
		log.WithError(err).Fatal(err)
	}
	if err := appSvc.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start app service")
	}

	svc, err := service_interface.NewService(web.Config{
		HTTPPort:      cfg.HTTPPort,
		SentryEnabled: sentryEnabled,
	}, appSvc, buildInfo, metricsSvc.Handler())
	if err != nil {
		log.Fatal(err)
	}

	log.RegisterExitHandler(func() {
		svc.Stop()
		appSvc.Stop()
		walletSvc.Close()
		repoManager.Close()
	})

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		log.Fatal(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
}
