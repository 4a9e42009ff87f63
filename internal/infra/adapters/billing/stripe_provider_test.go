//go:build !integration

package billing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripelib "github.com/stripe/stripe-go/v82"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/model"
)

type fakeStripe struct {
	customers map[string]*stripelib.Customer
	byEmail   map[string][]*stripelib.Customer
	subs      map[string][]*stripelib.Subscription
	err       error
	sawCtx    bool
}

func (f *fakeStripe) listCustomers(ctx context.Context, email string, limit int64) ([]*stripelib.Customer, error) {
	_, f.sawCtx = ctx.Deadline()
	return f.byEmail[email], f.err
}

func (f *fakeStripe) getCustomer(ctx context.Context, id string) (*stripelib.Customer, error) {
	_, f.sawCtx = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.customers[id]
	if !ok {
		return nil, &stripelib.Error{HTTPStatusCode: http.StatusNotFound, Code: stripelib.ErrorCodeResourceMissing}
	}
	return c, nil
}

func (f *fakeStripe) listSubscriptions(ctx context.Context, customerID string) ([]*stripelib.Subscription, error) {
	_, f.sawCtx = ctx.Deadline()
	return f.subs[customerID], f.err
}

func testProvider(f *fakeStripe) *StripeProvider {
	logger := zerolog.New(io.Discard)
	return newStripeProvider(f, time.Second, &logger)
}

func TestStripeProvider_FindCustomerByEmail(t *testing.T) {
	ctx := context.Background()
	f := &fakeStripe{byEmail: map[string][]*stripelib.Customer{
		"owner@example.com": {
			{ID: "cus_old", Deleted: true},
			{ID: "cus_1", Email: "Owner@Example.com", Metadata: map[string]string{"user_id": "u1"}},
			{ID: "cus_2", Email: "owner@example.com"},
		},
	}}
	p := testProvider(f)

	t.Run("should return the first live match", func(t *testing.T) {
		c, err := p.FindCustomerByEmail(ctx, " OWNER@example.com ")
		require.NoError(t, err)
		assert.Equal(t, "cus_1", c.ID)
		assert.Equal(t, "owner@example.com", c.Email)
		assert.Equal(t, "u1", c.UserID())
		assert.True(t, f.sawCtx, "calls must carry a deadline")
	})

	t.Run("should report no match as not found", func(t *testing.T) {
		_, err := p.FindCustomerByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("should reject an empty email", func(t *testing.T) {
		_, err := p.FindCustomerByEmail(ctx, "  ")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestStripeProvider_GetCustomer(t *testing.T) {
	ctx := context.Background()
	p := testProvider(&fakeStripe{customers: map[string]*stripelib.Customer{
		"cus_1":    {ID: "cus_1", Email: "a@b.c"},
		"cus_gone": {ID: "cus_gone", Deleted: true},
	}})

	c, err := p.GetCustomer(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", c.Email)

	_, err = p.GetCustomer(ctx, "cus_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = p.GetCustomer(ctx, "cus_gone")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStripeProvider_ListSubscriptions(t *testing.T) {
	ctx := context.Background()
	end1 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end2 := end1.Add(24 * time.Hour)

	f := &fakeStripe{subs: map[string][]*stripelib.Subscription{
		"cus_1": {{
			ID:       "sub_1",
			Status:   stripelib.SubscriptionStatusPastDue,
			Customer: &stripelib.Customer{ID: "cus_1"},
			TrialEnd: 0,
			Items: &stripelib.SubscriptionItemList{Data: []*stripelib.SubscriptionItem{
				{
					ID:               "si_base",
					Quantity:         1,
					CurrentPeriodEnd: end1.Unix(),
					Price:            &stripelib.Price{ID: "price_base", UnitAmount: 999},
				},
				{
					ID:               "si_addon",
					Quantity:         2,
					CurrentPeriodEnd: end2.Unix(),
					Metadata:         map[string]string{"pet_units": "2"},
					Price: &stripelib.Price{
						ID:         "price_addon",
						UnitAmount: 299,
						Metadata:   map[string]string{"type": "addon", "pet_units": "1"},
					},
				},
			}},
		}},
	}}

	subs, err := testProvider(f).ListSubscriptions(ctx, "cus_1")
	require.NoError(t, err)
	require.Len(t, subs, 1)

	s := subs[0]
	assert.Equal(t, model.ProviderStatusPastDue, s.Status)
	assert.Equal(t, "cus_1", s.CustomerID)
	assert.Nil(t, s.TrialEnd)
	require.NotNil(t, s.CurrentPeriodEnd)
	assert.True(t, s.CurrentPeriodEnd.Equal(end2))

	require.Len(t, s.Items, 2)
	assert.Equal(t, int64(999), s.Items[0].UnitAmount)
	assert.Equal(t, "addon", s.Items[1].Metadata["type"])
	assert.Equal(t, "2", s.Items[1].Metadata["pet_units"], "item metadata wins over price metadata")
}

func TestStripeProvider_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("should mark transport failures as unavailable", func(t *testing.T) {
		p := testProvider(&fakeStripe{err: errors.New("connection reset")})
		_, err := p.ListSubscriptions(ctx, "cus_1")
		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	})

	t.Run("should mark api errors as unavailable", func(t *testing.T) {
		p := testProvider(&fakeStripe{err: &stripelib.Error{HTTPStatusCode: http.StatusTooManyRequests}})
		_, err := p.GetCustomer(ctx, "cus_1")
		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	})

	t.Run("should require a secret key", func(t *testing.T) {
		logger := zerolog.New(io.Discard)
		_, err := NewStripeProvider(" ", time.Second, &logger)
		assert.ErrorIs(t, err, domain.ErrMissingConfig)
	})
}
