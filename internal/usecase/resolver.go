package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/model"
	"pet-subscription-sync/internal/domain/ports/adapter"
	"pet-subscription-sync/internal/infra/logging"
	"pet-subscription-sync/internal/infra/metrics"
)

// ResolveInput identifies the account being resolved. CustomerID wins over
// Email; Existing is the stored record, nil for a first resolution.
type ResolveInput struct {
	UserID     string
	Email      string
	CustomerID string
	Existing   *model.Subscriber
}

// StatusResolver derives a canonical snapshot from the billing provider.
type StatusResolver struct {
	provider adapter.BillingProvider
	tiers    TierClassifier
	addons   AddonCounter
	timeout  time.Duration
	now      func() time.Time
	log      *zerolog.Logger
}

func NewStatusResolver(
	provider adapter.BillingProvider,
	tiers TierClassifier,
	addons AddonCounter,
	timeout time.Duration,
	logger *zerolog.Logger,
) *StatusResolver {
	l := logger.With().Str("component", "StatusResolver").Logger()
	return &StatusResolver{
		provider: provider,
		tiers:    tiers,
		addons:   addons,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
		log:      &l,
	}
}

// Resolve never fails on provider errors. When nothing can be established it
// falls back to the stored record (if it shows prior activity) or to an
// inactive snapshot.
func (r *StatusResolver) Resolve(ctx context.Context, in ResolveInput) (*model.Snapshot, error) {
	defer logging.TraceDuration(r.log, "StatusResolver.Resolve")()

	email := model.NormalizeEmail(in.Email)
	if email == "" && in.Existing != nil {
		email = in.Existing.Email
	}
	customerID := strings.TrimSpace(in.CustomerID)
	if customerID == "" && in.Existing.HasCustomerID() {
		customerID = in.Existing.ExternalCustomerID
	}
	if customerID == "" && email == "" {
		return nil, domain.ErrInvalidArgument
	}

	log := logging.With(ctx, r.log)

	if customerID == "" {
		cust, err := r.findByEmail(ctx, email)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			log.Debug().Msg("no provider customer for email")
			return r.fallback(ctx, in.Existing, "", false), nil
		case err != nil:
			log.Warn().Err(err).Msg("provider customer lookup failed")
			return r.fallback(ctx, in.Existing, "", true), nil
		}
		customerID = cust.ID
	}

	subs, err := r.listSubscriptions(ctx, customerID)
	if err != nil {
		log.Warn().Err(err).Str("customer_id", customerID).Msg("provider subscription listing failed")
		return r.fallback(ctx, in.Existing, customerID, true), nil
	}
	return r.derive(customerID, subs), nil
}

func (r *StatusResolver) findByEmail(ctx context.Context, email string) (*model.BillingCustomer, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	started := time.Now()
	cust, err := r.provider.FindCustomerByEmail(cctx, email)
	metrics.ObserveProviderCall("find_customer", started, ignoreNotFound(err))
	if err == nil && (cust == nil || strings.TrimSpace(cust.ID) == "") {
		return nil, domain.ErrNotFound
	}
	return cust, err
}

func (r *StatusResolver) listSubscriptions(ctx context.Context, customerID string) ([]model.BillingSubscription, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	started := time.Now()
	subs, err := r.provider.ListSubscriptions(cctx, customerID)
	metrics.ObserveProviderCall("list_subscriptions", started, err)
	return subs, err
}

func (r *StatusResolver) fallback(ctx context.Context, existing *model.Subscriber, customerID string, lookupFailed bool) *model.Snapshot {
	reason := "no_customer"
	if lookupFailed {
		reason = "lookup_failed"
	}
	if existing.ShowsPriorActivity(r.now()) {
		snap := model.SnapshotFromSubscriber(existing)
		snap.Preserved = true
		snap.LookupFailed = lookupFailed
		if snap.CustomerID == "" {
			snap.CustomerID = customerID
		}
		metrics.IncPreserved(reason)
		logging.With(ctx, r.log).Info().
			Str("reason", reason).
			Str("status", string(existing.Status)).
			Msg("provider established nothing; keeping stored record")
		return snap
	}
	snap := model.InactiveSnapshot(customerID)
	snap.LookupFailed = lookupFailed
	return snap
}

// derive maps the provider's subscription list onto a snapshot. A
// payment-problem subscription stands in for tier, expiry and add-ons only
// when no current subscription exists.
func (r *StatusResolver) derive(customerID string, subs []model.BillingSubscription) *model.Snapshot {
	var current, problem []model.BillingSubscription
	for _, s := range subs {
		switch {
		case s.Status.Current():
			current = append(current, s)
		case s.Status.PaymentProblem():
			problem = append(problem, s)
		}
	}

	snap := model.InactiveSnapshot(customerID)
	snap.HasPaymentProblem = len(problem) > 0

	matched := current
	if len(current) > 0 {
		snap.HasCurrent = true
		snap.Subscribed = true
	} else if len(problem) > 0 {
		matched = problem
	} else {
		return snap
	}

	first := matched[0]
	if item, ok := r.addons.PrimaryItem(first); ok {
		tier := r.tiers.Classify(item.UnitAmount)
		snap.Tier = &tier
	}
	snap.SubscriptionEnd = expiryOf(first)
	snap.AdditionalUnits = r.addons.Units(matched)
	snap.PetLimit = model.BasePetLimit + snap.AdditionalUnits
	return snap
}

func expiryOf(s model.BillingSubscription) *time.Time {
	if s.Status == model.ProviderStatusTrialing && s.TrialEnd != nil {
		t := s.TrialEnd.UTC()
		return &t
	}
	if s.CurrentPeriodEnd != nil {
		t := s.CurrentPeriodEnd.UTC()
		return &t
	}
	return nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
