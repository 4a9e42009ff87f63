package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pet-subscription-sync/internal/infra/api"
	pg "pet-subscription-sync/internal/infra/db/postgres"
	"pet-subscription-sync/internal/infra/metrics"
	red "pet-subscription-sync/internal/infra/redis"
	"pet-subscription-sync/internal/infra/sched"
	"pet-subscription-sync/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook and sync API, plus the corruption monitor",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		d, err := buildDeps(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer d.Close()
		metrics.MustRegister()

		rc := d.reconciler(cfg, logger)
		ingestor := usecase.NewWebhookUseCase(d.ledger, d.subs, d.provider, rc, cfg.Billing.ProviderTimeout, logger)

		var limiter api.Limiter
		var locker sched.Locker
		if d.redis != nil {
			limiter = red.NewRateLimiter(d.redis, "sync", cfg.Reconcile.RateLimit, cfg.Reconcile.RateWindow, logger)
			locker = red.NewLocker(d.redis)
		}

		router := api.NewRouter(api.RouterDeps{
			Webhook:        api.NewWebhookHandler(d.verifier, ingestor, logger),
			Reconcile:      api.NewReconcileHandler(api.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer), limiter, rc, cfg.Runtime.Dev, logger),
			RequestTimeout: cfg.HTTP.RequestTimeout,
			Ready:          d.ping,
		}, logger)
		server := api.NewServer(cfg.HTTP.Port, router, logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return server.Run(gctx) })
		g.Go(func() error {
			pg.ReportPoolStats(gctx, d.pool, 0, logger)
			return nil
		})
		if cfg.Monitor.Enabled {
			monitor := sched.NewCorruptionMonitor(d.auditor(cfg, logger), locker, cfg.Monitor.Interval, true, logger)
			g.Go(func() error { return monitor.Run(gctx) })
		} else {
			logger.Warn().Msg("corruption monitor disabled")
		}

		logger.Info().Str("version", Version).Int("port", cfg.HTTP.Port).Msg("service started")
		err = g.Wait()
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("service stopped with error")
			return err
		}
		logger.Info().Msg("service stopped")
		return nil
	},
}
