package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/model"
	"pet-subscription-sync/internal/domain/ports/adapter"
	"pet-subscription-sync/internal/domain/ports/repository"
	ucport "pet-subscription-sync/internal/domain/ports/usecase"
	"pet-subscription-sync/internal/infra/logging"
	"pet-subscription-sync/internal/infra/metrics"
)

var _ ucport.EventIngestor = (*webhookUC)(nil)

// subscriptionFields are the previous-attribute keys of an update event
// that can change entitlement.
var subscriptionFields = map[string]struct{}{
	"status":               {},
	"current_period_end":   {},
	"current_period_start": {},
	"trial_end":            {},
	"cancel_at":            {},
	"cancel_at_period_end": {},
	"canceled_at":          {},
	"ended_at":             {},
	"items":                {},
}

type webhookUC struct {
	ledger   repository.EventLedger
	subs     repository.SubscriberRepository
	provider adapter.BillingProvider
	pipeline Pipeline
	timeout  time.Duration
	log      *zerolog.Logger
}

func NewWebhookUseCase(
	ledger repository.EventLedger,
	subs repository.SubscriberRepository,
	provider adapter.BillingProvider,
	pipeline Pipeline,
	timeout time.Duration,
	logger *zerolog.Logger,
) *webhookUC {
	l := logger.With().Str("component", "WebhookUC").Logger()
	return &webhookUC{
		ledger:   ledger,
		subs:     subs,
		provider: provider,
		pipeline: pipeline,
		timeout:  timeout,
		log:      &l,
	}
}

func (u *webhookUC) Ingest(ctx context.Context, ev *model.BillingEvent) (ucport.WebhookOutcome, error) {
	defer logging.TraceDuration(u.log, "WebhookUC.Ingest")()

	if ev == nil || strings.TrimSpace(ev.ID) == "" {
		return ucport.WebhookFailed, domain.ErrInvalidArgument
	}
	ctx = logging.WithEventID(ctx, ev.ID)
	log := logging.With(ctx, u.log).With().Str("event_type", string(ev.Type)).Logger()

	signal, relevant := classifyEvent(ev)
	if !relevant {
		log.Debug().Msg("ignoring billing event")
		metrics.IncBillingEvent(string(ev.Type), string(ucport.WebhookIgnored))
		return ucport.WebhookIgnored, nil
	}

	claimed, err := u.ledger.Claim(ctx, repository.NoTX, ev.ID, string(ev.Type))
	if err != nil {
		log.Error().Err(err).Msg("failed to claim billing event")
		return ucport.WebhookFailed, fmt.Errorf("claim event: %w", err)
	}
	if !claimed {
		log.Info().Msg("billing event already processed")
		metrics.IncBillingEvent(string(ev.Type), string(ucport.WebhookDuplicate))
		return ucport.WebhookDuplicate, nil
	}

	outcome := u.dispatch(ctx, &log, ev, signal)
	metrics.IncBillingEvent(string(ev.Type), string(outcome))
	return outcome, nil
}

// dispatch never returns an error: once claimed, the event is acknowledged
// and the next pull heals whatever was lost.
func (u *webhookUC) dispatch(ctx context.Context, log *zerolog.Logger, ev *model.BillingEvent, signal PaymentSignal) ucport.WebhookOutcome {
	target, err := u.locate(ctx, ev)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Str("customer_id", ev.CustomerID).Msg("no subscriber matches billing event")
		return ucport.WebhookIgnored
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to locate subscriber for billing event")
		return ucport.WebhookFailed
	}

	target.Signal = signal
	target.Source = SourceWebhook
	if _, err := u.pipeline.Apply(ctx, *target); err != nil {
		log.Error().Err(err).Str("user_id", target.UserID).Msg("failed to apply billing event")
		return ucport.WebhookFailed
	}
	return ucport.WebhookProcessed
}

// locate finds the subscriber by customer id, then by the event's customer
// email, then through the provider customer's email or user_id metadata.
func (u *webhookUC) locate(ctx context.Context, ev *model.BillingEvent) (*Target, error) {
	customerID := strings.TrimSpace(ev.CustomerID)

	if customerID != "" {
		s, err := u.subs.FindByCustomerID(ctx, repository.NoTX, customerID)
		if err == nil {
			return targetFor(s, customerID), nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	if email := model.NormalizeEmail(ev.CustomerEmail); email != "" {
		s, err := u.subs.FindByEmail(ctx, repository.NoTX, email)
		if err == nil {
			return targetFor(s, customerID), nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	if customerID == "" {
		return nil, domain.ErrNotFound
	}

	cctx, cancel := context.WithTimeout(ctx, u.timeout)
	started := time.Now()
	cust, err := u.provider.GetCustomer(cctx, customerID)
	cancel()
	metrics.ObserveProviderCall("get_customer", started, ignoreNotFound(err))
	if err != nil {
		return nil, err
	}

	if email := model.NormalizeEmail(cust.Email); email != "" {
		s, err := u.subs.FindByEmail(ctx, repository.NoTX, email)
		if err == nil {
			return targetFor(s, customerID), nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	userID := cust.UserID()
	if userID == "" {
		return nil, domain.ErrNotFound
	}
	s, err := u.subs.FindByUserID(ctx, repository.NoTX, userID)
	switch {
	case err == nil:
		return targetFor(s, customerID), nil
	case errors.Is(err, domain.ErrNotFound):
		// first sighting of this account, created from the checkout metadata
		return &Target{UserID: userID, Email: cust.Email, CustomerID: customerID}, nil
	default:
		return nil, err
	}
}

func targetFor(s *model.Subscriber, customerID string) *Target {
	return &Target{
		UserID:     s.UserID,
		Email:      s.Email,
		CustomerID: customerID,
		Existing:   s,
	}
}

func classifyEvent(ev *model.BillingEvent) (PaymentSignal, bool) {
	switch ev.Type {
	case model.EventSubscriptionCreated, model.EventSubscriptionDeleted:
		return SignalNone, true
	case model.EventSubscriptionUpdated:
		if ev.ChangedFields == nil {
			return SignalNone, true
		}
		for _, f := range ev.ChangedFields {
			if _, ok := subscriptionFields[f]; ok {
				return SignalNone, true
			}
		}
		return SignalNone, false
	case model.EventInvoicePaymentFailed:
		return SignalPaymentFailed, true
	case model.EventInvoicePaymentSucceeded:
		return SignalPaymentSucceeded, true
	default:
		return SignalNone, false
	}
}
