package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/config"
	"pet-subscription-sync/internal/domain/ports/adapter"
	"pet-subscription-sync/internal/domain/ports/repository"
	ucport "pet-subscription-sync/internal/domain/ports/usecase"
	"pet-subscription-sync/internal/infra/adapters/alert"
	"pet-subscription-sync/internal/infra/adapters/billing"
	pg "pet-subscription-sync/internal/infra/db/postgres"
	red "pet-subscription-sync/internal/infra/redis"
	"pet-subscription-sync/internal/usecase"
)

// deps holds the long-lived collaborators shared by the commands.
type deps struct {
	pool     *pgxpool.Pool
	redis    *red.Client // nil when redis.url is empty or unreachable
	subs     repository.SubscriberRepository
	ledger   repository.EventLedger
	tm       repository.TransactionManager
	provider adapter.BillingProvider
	verifier *billing.StripeVerifier
	alerter  adapter.Alerter
}

func (d *deps) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

func buildDeps(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*deps, error) {
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	d := &deps{
		pool:     pool,
		subs:     pg.NewSubscriberRepo(pool),
		ledger:   pg.NewEventLedgerRepo(pool),
		tm:       pg.NewTxManager(pool),
		verifier: billing.NewStripeVerifier(cfg.Billing.WebhookSecret),
	}

	switch strings.ToLower(cfg.Billing.Provider) {
	case "noop":
		logger.Warn().Msg("using the in-memory noop billing provider")
		d.provider = billing.NewNoopProvider()
	default:
		p, err := billing.NewStripeProvider(cfg.Billing.SecretKey, cfg.Billing.ProviderTimeout, logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.provider = p
	}

	if cfg.Alert.MailjetPublicKey != "" {
		a, err := alert.NewMailjetAlerter(cfg.Alert.MailjetPublicKey, cfg.Alert.MailjetPrivateKey, cfg.Alert.Sender, cfg.Alert.Recipient, logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.alerter = a
	} else {
		logger.Warn().Msg("mailjet not configured, alerts go to the log only")
		d.alerter = alert.NewLogAlerter(logger)
	}

	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			// throttling and the audit lease degrade to off; both are optional
			logger.Warn().Err(err).Msg("redis unavailable, continuing without it")
		} else {
			d.redis = rc
		}
	}
	return d, nil
}

// reconcilePipeline is the single pipeline both entry points converge on.
type reconcilePipeline interface {
	usecase.Pipeline
	ucport.Reconciler
}

func (d *deps) reconciler(cfg *config.Config, logger *zerolog.Logger) reconcilePipeline {
	resolver := usecase.NewStatusResolver(
		d.provider,
		usecase.TierClassifier{BasicMax: cfg.Billing.Tiers.BasicMax, PremiumMax: cfg.Billing.Tiers.PremiumMax},
		usecase.AddonCounter{
			Key:      cfg.Billing.Addon.MetadataKey,
			Value:    cfg.Billing.Addon.MetadataValue,
			UnitsKey: cfg.Billing.Addon.UnitsKey,
		},
		cfg.Billing.ProviderTimeout,
		logger,
	)
	return usecase.NewReconcileUseCase(d.subs, d.tm, resolver, usecase.NewIntegrityGuard(logger), logger)
}

func (d *deps) auditor(cfg *config.Config, logger *zerolog.Logger) ucport.Auditor {
	return usecase.NewAuditUseCase(d.subs, d.alerter, cfg.Monitor.Limit, logger)
}

func (d *deps) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.pool.Ping(ctx)
}
