//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/model"
)

func TestStatusResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	periodEnd := testNow.Add(20 * 24 * time.Hour)

	t.Run("should return an inactive snapshot when no customer matches", func(t *testing.T) {
		p := &MockBillingProvider{}
		r := newTestResolver(p, testNow)

		snap, err := r.Resolve(ctx, ResolveInput{UserID: "u1", Email: " Owner@Example.com "})
		require.NoError(t, err)

		assert.False(t, snap.Subscribed)
		assert.Empty(t, snap.CustomerID)
		assert.Equal(t, model.BasePetLimit, snap.PetLimit)
		assert.False(t, snap.Preserved)
		assert.Equal(t, []string{"owner@example.com"}, p.Calls.FindByEmail)
		assert.Empty(t, p.Calls.List)
	})

	t.Run("should use the stored customer id before the email", func(t *testing.T) {
		p := &MockBillingProvider{
			ListSubscriptionsFunc: func(ctx context.Context, customerID string) ([]model.BillingSubscription, error) {
				return []model.BillingSubscription{activeSub(customerID, 1500, periodEnd, addonItem(2, ""))}, nil
			},
		}
		r := newTestResolver(p, testNow)
		existing := &model.Subscriber{UserID: "u1", Email: "a@b.c", ExternalCustomerID: "cus_123"}

		snap, err := r.Resolve(ctx, ResolveInput{UserID: "u1", Email: "a@b.c", Existing: existing})
		require.NoError(t, err)

		assert.Empty(t, p.Calls.FindByEmail)
		assert.Equal(t, []string{"cus_123"}, p.Calls.List)
		assert.True(t, snap.Subscribed)
		assert.True(t, snap.HasCurrent)
		require.NotNil(t, snap.Tier)
		assert.Equal(t, model.TierPremium, *snap.Tier)
		assert.Equal(t, 2, snap.AdditionalUnits)
		assert.Equal(t, 3, snap.PetLimit)
		require.NotNil(t, snap.SubscriptionEnd)
		assert.True(t, snap.SubscriptionEnd.Equal(periodEnd))
		assert.Equal(t, "cus_123", snap.CustomerID)
	})

	t.Run("should preserve an active record when listing fails", func(t *testing.T) {
		p := &MockBillingProvider{
			ListSubscriptionsFunc: func(ctx context.Context, customerID string) ([]model.BillingSubscription, error) {
				return nil, errors.New("provider 503")
			},
		}
		r := newTestResolver(p, testNow)
		existing := &model.Subscriber{
			UserID:             "u1",
			ExternalCustomerID: "cus_123",
			Status:             model.SubscriberStatusActive,
			Tier:               ptrTier(model.TierBasic),
			PetLimit:           2,
			AdditionalPetSlots: 1,
		}

		snap, err := r.Resolve(ctx, ResolveInput{UserID: "u1", Existing: existing})
		require.NoError(t, err)

		assert.True(t, snap.Preserved)
		assert.True(t, snap.LookupFailed)
		assert.True(t, snap.Subscribed)
		assert.Equal(t, "cus_123", snap.CustomerID)
		assert.Equal(t, 1, snap.AdditionalUnits)
	})

	t.Run("should preserve a record with a future subscription end when the email lookup errors", func(t *testing.T) {
		p := &MockBillingProvider{
			FindCustomerByEmailFunc: func(ctx context.Context, email string) (*model.BillingCustomer, error) {
				return nil, domain.ErrProviderUnavailable
			},
		}
		r := newTestResolver(p, testNow)
		existing := &model.Subscriber{UserID: "u1", Email: "a@b.c", Status: model.SubscriberStatusInactive, SubscriptionEnd: &periodEnd}

		snap, err := r.Resolve(ctx, ResolveInput{UserID: "u1", Email: "a@b.c", Existing: existing})
		require.NoError(t, err)
		assert.True(t, snap.Preserved)
		assert.True(t, snap.LookupFailed)
	})

	t.Run("should fall back to inactive without prior activity", func(t *testing.T) {
		p := &MockBillingProvider{
			FindCustomerByEmailFunc: func(ctx context.Context, email string) (*model.BillingCustomer, error) {
				return nil, domain.ErrProviderUnavailable
			},
		}
		r := newTestResolver(p, testNow)
		existing := &model.Subscriber{UserID: "u1", Email: "a@b.c", Status: model.SubscriberStatusSuspended}

		snap, err := r.Resolve(ctx, ResolveInput{UserID: "u1", Existing: existing})
		require.NoError(t, err)
		assert.False(t, snap.Preserved)
		assert.True(t, snap.LookupFailed)
		assert.False(t, snap.Subscribed)
	})

	t.Run("should give up on a slow provider after the timeout", func(t *testing.T) {
		p := &MockBillingProvider{
			FindCustomerByEmailFunc: func(ctx context.Context, email string) (*model.BillingCustomer, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}
		r := NewStatusResolver(p, testTiers(), testAddons(), 20*time.Millisecond, newTestLogger())
		existing := &model.Subscriber{UserID: "u1", Email: "a@b.c", Status: model.SubscriberStatusGrace}

		started := time.Now()
		snap, err := r.Resolve(ctx, ResolveInput{UserID: "u1", Existing: existing})
		require.NoError(t, err)
		assert.Less(t, time.Since(started), time.Second)
		assert.True(t, snap.Preserved)
	})

	t.Run("should use trial end for trialing subscriptions", func(t *testing.T) {
		trialEnd := testNow.Add(7 * 24 * time.Hour)
		p := &MockBillingProvider{
			FindCustomerByEmailFunc: func(ctx context.Context, email string) (*model.BillingCustomer, error) {
				return &model.BillingCustomer{ID: "cus_t", Email: email}, nil
			},
			ListSubscriptionsFunc: func(ctx context.Context, customerID string) ([]model.BillingSubscription, error) {
				s := activeSub(customerID, 500, periodEnd)
				s.Status = model.ProviderStatusTrialing
				s.TrialEnd = &trialEnd
				return []model.BillingSubscription{s}, nil
			},
		}
		snap, err := newTestResolver(p, testNow).Resolve(ctx, ResolveInput{UserID: "u1", Email: "a@b.c"})
		require.NoError(t, err)

		assert.Equal(t, "cus_t", snap.CustomerID)
		assert.True(t, snap.Subscribed)
		require.NotNil(t, snap.SubscriptionEnd)
		assert.True(t, snap.SubscriptionEnd.Equal(trialEnd))
		assert.Equal(t, model.TierBasic, *snap.Tier)
	})

	t.Run("should derive from a payment-problem subscription when none is current", func(t *testing.T) {
		p := &MockBillingProvider{
			ListSubscriptionsFunc: func(ctx context.Context, customerID string) ([]model.BillingSubscription, error) {
				canceled := activeSub(customerID, 2500, periodEnd)
				canceled.Status = model.ProviderStatusCanceled
				pastDue := activeSub(customerID, 2500, periodEnd, addonItem(1, "3"))
				pastDue.Status = model.ProviderStatusPastDue
				return []model.BillingSubscription{canceled, pastDue}, nil
			},
		}
		snap, err := newTestResolver(p, testNow).Resolve(ctx, ResolveInput{UserID: "u1", CustomerID: "cus_p"})
		require.NoError(t, err)

		assert.False(t, snap.Subscribed)
		assert.False(t, snap.HasCurrent)
		assert.True(t, snap.HasPaymentProblem)
		assert.Equal(t, model.TierEnterprise, *snap.Tier)
		assert.Equal(t, 3, snap.AdditionalUnits)
	})

	t.Run("should report no evidence for canceled-only subscriptions", func(t *testing.T) {
		p := &MockBillingProvider{
			ListSubscriptionsFunc: func(ctx context.Context, customerID string) ([]model.BillingSubscription, error) {
				s := activeSub(customerID, 999, periodEnd)
				s.Status = model.ProviderStatusCanceled
				return []model.BillingSubscription{s}, nil
			},
		}
		snap, err := newTestResolver(p, testNow).Resolve(ctx, ResolveInput{UserID: "u1", CustomerID: "cus_c"})
		require.NoError(t, err)

		assert.False(t, snap.HasCurrent)
		assert.False(t, snap.HasPaymentProblem)
		assert.Nil(t, snap.Tier)
		assert.Equal(t, "cus_c", snap.CustomerID)
	})

	t.Run("should reject input without any identity", func(t *testing.T) {
		_, err := newTestResolver(&MockBillingProvider{}, testNow).Resolve(ctx, ResolveInput{UserID: "u1"})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}
