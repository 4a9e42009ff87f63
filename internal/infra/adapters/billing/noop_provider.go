package billing

import (
	"context"
	"strings"
	"sync"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/model"
	"pet-subscription-sync/internal/domain/ports/adapter"
)

var _ adapter.BillingProvider = (*NoopProvider)(nil)

// NoopProvider is an in-memory provider for local runs and tests.
type NoopProvider struct {
	mu            sync.Mutex
	customers     map[string]*model.BillingCustomer
	subscriptions map[string][]model.BillingSubscription
}

func NewNoopProvider() *NoopProvider {
	return &NoopProvider{
		customers:     make(map[string]*model.BillingCustomer),
		subscriptions: make(map[string][]model.BillingSubscription),
	}
}

func (p *NoopProvider) Name() string { return "noop" }

// Put registers a customer and its subscriptions.
func (p *NoopProvider) Put(c model.BillingCustomer, subs ...model.BillingSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c.Email = model.NormalizeEmail(c.Email)
	p.customers[c.ID] = &c
	p.subscriptions[c.ID] = append([]model.BillingSubscription(nil), subs...)
}

func (p *NoopProvider) FindCustomerByEmail(ctx context.Context, email string) (*model.BillingCustomer, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var first *model.BillingCustomer
	for _, c := range p.customers {
		if c.Email != email {
			continue
		}
		if first == nil || c.ID < first.ID {
			first = c
		}
	}
	if first == nil {
		return nil, domain.ErrNotFound
	}
	cp := *first
	return &cp, nil
}

func (p *NoopProvider) GetCustomer(ctx context.Context, customerID string) (*model.BillingCustomer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.customers[strings.TrimSpace(customerID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (p *NoopProvider) ListSubscriptions(ctx context.Context, customerID string) ([]model.BillingSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.BillingSubscription(nil), p.subscriptions[strings.TrimSpace(customerID)]...), nil
}
