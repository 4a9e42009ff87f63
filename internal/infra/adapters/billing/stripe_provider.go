package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/model"
	"pet-subscription-sync/internal/domain/ports/adapter"
	"pet-subscription-sync/internal/infra/metrics"
)

var _ adapter.BillingProvider = (*StripeProvider)(nil)

// stripeAPI is the slice of the Stripe client the provider needs.
type stripeAPI interface {
	listCustomers(ctx context.Context, email string, limit int64) ([]*stripelib.Customer, error)
	getCustomer(ctx context.Context, id string) (*stripelib.Customer, error)
	listSubscriptions(ctx context.Context, customerID string) ([]*stripelib.Subscription, error)
}

// StripeProvider reads customers and subscriptions from Stripe.
type StripeProvider struct {
	api     stripeAPI
	timeout time.Duration
	log     *zerolog.Logger
}

func NewStripeProvider(secretKey string, timeout time.Duration, logger *zerolog.Logger) (*StripeProvider, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key: %w", domain.ErrMissingConfig)
	}
	return newStripeProvider(&clientAPI{sc: client.New(secretKey, nil)}, timeout, logger), nil
}

func newStripeProvider(api stripeAPI, timeout time.Duration, logger *zerolog.Logger) *StripeProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	l := logger.With().Str("component", "StripeProvider").Logger()
	return &StripeProvider{api: api, timeout: timeout, log: &l}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) FindCustomerByEmail(ctx context.Context, email string) (*model.BillingCustomer, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	list, err := p.api.listCustomers(ctx, email, 10)
	metrics.ObserveProviderCall("find_customer", started, err)
	if err != nil {
		return nil, p.wrap("find customer by email", err)
	}
	for _, c := range list {
		if c == nil || c.Deleted {
			continue
		}
		if len(list) > 1 {
			p.log.Warn().Int("matches", len(list)).Str("customer_id", c.ID).Msg("multiple customers share an email, using the first")
		}
		return toCustomer(c), nil
	}
	return nil, domain.ErrNotFound
}

func (p *StripeProvider) GetCustomer(ctx context.Context, customerID string) (*model.BillingCustomer, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	c, err := p.api.getCustomer(ctx, customerID)
	metrics.ObserveProviderCall("get_customer", started, err)
	if err != nil {
		return nil, p.wrap("get customer", err)
	}
	if c == nil || c.Deleted {
		return nil, domain.ErrNotFound
	}
	return toCustomer(c), nil
}

func (p *StripeProvider) ListSubscriptions(ctx context.Context, customerID string) ([]model.BillingSubscription, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	subs, err := p.api.listSubscriptions(ctx, customerID)
	metrics.ObserveProviderCall("list_subscriptions", started, err)
	if err != nil {
		return nil, p.wrap("list subscriptions", err)
	}
	out := make([]model.BillingSubscription, 0, len(subs))
	for _, s := range subs {
		if s == nil {
			continue
		}
		out = append(out, toSubscription(s, customerID))
	}
	return out, nil
}

// wrap maps Stripe failures onto domain errors. Missing resources become
// ErrNotFound, everything else is treated as the provider being unavailable.
func (p *StripeProvider) wrap(op string, err error) error {
	var se *stripelib.Error
	if errors.As(err, &se) {
		if se.HTTPStatusCode == http.StatusNotFound || se.Code == stripelib.ErrorCodeResourceMissing {
			return domain.ErrNotFound
		}
		p.log.Warn().Str("op", op).Int("http_status", se.HTTPStatusCode).Str("code", string(se.Code)).Msg("stripe request failed")
	} else {
		p.log.Warn().Err(err).Str("op", op).Msg("stripe request failed")
	}
	return errors.Join(domain.ErrProviderUnavailable, fmt.Errorf("%s: %w", op, err))
}

func toCustomer(c *stripelib.Customer) *model.BillingCustomer {
	return &model.BillingCustomer{
		ID:       c.ID,
		Email:    model.NormalizeEmail(c.Email),
		Metadata: c.Metadata,
	}
}

func toSubscription(s *stripelib.Subscription, customerID string) model.BillingSubscription {
	out := model.BillingSubscription{
		ID:         s.ID,
		CustomerID: customerID,
		Status:     model.ProviderSubscriptionStatus(s.Status),
		TrialEnd:   unixPtr(s.TrialEnd),
	}
	if s.Customer != nil && s.Customer.ID != "" {
		out.CustomerID = s.Customer.ID
	}
	if s.Items == nil {
		return out
	}
	var periodEnd int64
	for _, it := range s.Items.Data {
		if it == nil {
			continue
		}
		if it.CurrentPeriodEnd > periodEnd {
			periodEnd = it.CurrentPeriodEnd
		}
		out.Items = append(out.Items, toLineItem(it))
	}
	out.CurrentPeriodEnd = unixPtr(periodEnd)
	return out
}

func toLineItem(it *stripelib.SubscriptionItem) model.BillingLineItem {
	li := model.BillingLineItem{
		ID:       it.ID,
		Quantity: it.Quantity,
		Metadata: map[string]string{},
	}
	if it.Price != nil {
		li.PriceID = it.Price.ID
		li.UnitAmount = it.Price.UnitAmount
		for k, v := range it.Price.Metadata {
			li.Metadata[k] = v
		}
	}
	for k, v := range it.Metadata {
		li.Metadata[k] = v
	}
	return li
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// clientAPI talks to Stripe through a per-provider client so the secret key
// is never written to the package-level stripe.Key.
type clientAPI struct {
	sc *client.API
}

func (c *clientAPI) listCustomers(ctx context.Context, email string, limit int64) ([]*stripelib.Customer, error) {
	params := &stripelib.CustomerListParams{Email: stripelib.String(email)}
	params.Context = ctx
	params.Limit = stripelib.Int64(limit)
	params.Single = true

	it := c.sc.Customers.List(params)
	var out []*stripelib.Customer
	for it.Next() {
		out = append(out, it.Customer())
	}
	return out, it.Err()
}

func (c *clientAPI) getCustomer(ctx context.Context, id string) (*stripelib.Customer, error) {
	params := &stripelib.CustomerParams{}
	params.Context = ctx
	return c.sc.Customers.Get(id, params)
}

func (c *clientAPI) listSubscriptions(ctx context.Context, customerID string) ([]*stripelib.Subscription, error) {
	params := &stripelib.SubscriptionListParams{
		Customer: stripelib.String(customerID),
		Status:   stripelib.String("all"),
	}
	params.Context = ctx
	params.Limit = stripelib.Int64(100)

	it := c.sc.Subscriptions.List(params)
	var out []*stripelib.Subscription
	for it.Next() {
		out = append(out, it.Subscription())
	}
	return out, it.Err()
}
