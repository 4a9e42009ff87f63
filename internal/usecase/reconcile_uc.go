package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/model"
	"pet-subscription-sync/internal/domain/ports/repository"
	ucport "pet-subscription-sync/internal/domain/ports/usecase"
	"pet-subscription-sync/internal/infra/logging"
	"pet-subscription-sync/internal/infra/metrics"
)

// Compile-time checks
var (
	_ ucport.Reconciler = (*reconcileUC)(nil)
	_ Pipeline          = (*reconcileUC)(nil)
)

type Source string

const (
	SourcePull    Source = "pull"
	SourceWebhook Source = "webhook"
)

// Target is one reconciliation request. Existing is the stored record when
// the caller already located it.
type Target struct {
	UserID     string
	Email      string
	CustomerID string
	Existing   *model.Subscriber
	Signal     PaymentSignal
	Source     Source
}

// Pipeline is the resolve, evaluate, guard and persist sequence shared by the
// pull and push entry points.
type Pipeline interface {
	Apply(ctx context.Context, t Target) (*model.Subscriber, error)
}

// SnapshotResolver is satisfied by *StatusResolver.
type SnapshotResolver interface {
	Resolve(ctx context.Context, in ResolveInput) (*model.Snapshot, error)
}

type reconcileUC struct {
	subs     repository.SubscriberRepository
	tm       repository.TransactionManager
	resolver SnapshotResolver
	policy   GracePeriodPolicy
	guard    *IntegrityGuard
	now      func() time.Time
	log      *zerolog.Logger
}

func NewReconcileUseCase(
	subs repository.SubscriberRepository,
	tm repository.TransactionManager,
	resolver SnapshotResolver,
	guard *IntegrityGuard,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		subs:     subs,
		tm:       tm,
		resolver: resolver,
		guard:    guard,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		log:      &l,
	}
}

func (u *reconcileUC) Sync(ctx context.Context, id ucport.Identity) (*model.Subscriber, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.Sync")()

	userID := strings.TrimSpace(id.UserID)
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	existing, err := u.subs.FindByUserID(ctx, repository.NoTX, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load subscriber: %w", err)
	}
	return u.Apply(ctx, Target{
		UserID:   userID,
		Email:    id.Email,
		Existing: existing,
		Source:   SourcePull,
	})
}

// Apply runs one reconciliation pass. Provider calls happen before the
// transaction; the guard compares against the record re-read inside it.
func (u *reconcileUC) Apply(ctx context.Context, t Target) (*model.Subscriber, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.Apply")()

	ctx = logging.WithUserID(ctx, t.UserID)
	log := logging.With(ctx, u.log)

	snap, err := u.resolver.Resolve(ctx, ResolveInput{
		UserID:     t.UserID,
		Email:      t.Email,
		CustomerID: t.CustomerID,
		Existing:   t.Existing,
	})
	if err != nil {
		metrics.IncReconcile(string(t.Source), "failed")
		return nil, fmt.Errorf("resolve: %w", err)
	}

	var saved *model.Subscriber
	var skipped bool
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	err = u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		current, err := u.subs.FindByUserID(ctx, tx, t.UserID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if errors.Is(err, domain.ErrNotFound) {
			current = nil
		}

		upd := u.buildUpdate(t, snap, current)
		if upd == nil {
			saved, skipped = current, true
			return nil
		}
		saved, err = u.subs.ApplyStatus(ctx, tx, u.guard.Apply(current, upd))
		return err
	})
	if err != nil {
		metrics.IncReconcile(string(t.Source), "failed")
		if errors.Is(err, domain.ErrIntegrityViolation) {
			log.Error().Err(err).Msg("store rejected external customer id change")
		} else {
			log.Error().Err(err).Msg("failed to persist subscriber status")
		}
		return nil, fmt.Errorf("persist subscriber: %w", err)
	}

	switch {
	case skipped:
		metrics.IncReconcile(string(t.Source), "preserved")
	case snap.Preserved:
		metrics.IncReconcile(string(t.Source), "preserved")
		log.Info().Str("status", string(saved.Status)).Msg("preserved record advanced by time")
	default:
		metrics.IncReconcile(string(t.Source), "written")
		log.Debug().Str("status", string(saved.Status)).Msg("subscriber reconciled")
	}
	return saved, nil
}

// buildUpdate evaluates the grace policy and assembles the write payload.
// It returns nil when a preserved snapshot would not change the status.
func (u *reconcileUC) buildUpdate(t Target, snap *model.Snapshot, current *model.Subscriber) *model.StatusUpdate {
	now := u.now()

	in := PolicyInput{
		Prior:             model.SubscriberStatusInactive,
		HasCurrent:        snap.HasCurrent,
		HasPaymentProblem: snap.HasPaymentProblem,
		Signal:            t.Signal,
		Now:               now,
	}
	if current != nil {
		in.Prior = current.Status
		in.PaymentFailedAt = current.PaymentFailedAt
		in.GracePeriodEnd = current.GracePeriodEnd
	}
	if snap.Preserved && current != nil {
		// the stored record is the only evidence available
		in.HasCurrent = current.Status == model.SubscriberStatusActive
		in.HasPaymentProblem = current.Status == model.SubscriberStatusGrace ||
			current.Status == model.SubscriberStatusSuspended
	}
	d := u.policy.Evaluate(in)

	if snap.Preserved && current != nil && d.Status == current.Status {
		return nil
	}

	email := model.NormalizeEmail(t.Email)
	if email == "" && current != nil {
		email = current.Email
	}
	customerID := snap.CustomerID
	upd := &model.StatusUpdate{
		UserID:             t.UserID,
		Email:              email,
		CustomerID:         &customerID,
		Status:             d.Status,
		Tier:               snap.Tier,
		SubscriptionEnd:    snap.SubscriptionEnd,
		AdditionalPetSlots: snap.AdditionalUnits,
		PaymentFailedAt:    d.PaymentFailedAt,
		GracePeriodEnd:     d.GracePeriodEnd,
		ReactivatedAt:      d.ReactivatedAt,
	}
	if current != nil {
		if upd.ReactivatedAt == nil {
			upd.ReactivatedAt = current.ReactivatedAt
		}
		upd.CanceledAt = current.CanceledAt
	}
	if d.Canceled {
		upd.CanceledAt = &now
	}
	if !d.Status.Entitled() {
		upd.Tier = nil
		upd.AdditionalPetSlots = 0
	}
	return upd
}
