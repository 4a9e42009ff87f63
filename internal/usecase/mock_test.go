//go:build !integration

package usecase

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/model"
	"pet-subscription-sync/internal/domain/ports/adapter"
	"pet-subscription-sync/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func ptrTime(t time.Time) *time.Time { return &t }

func ptrTier(t model.SubscriptionTier) *model.SubscriptionTier { return &t }

func ptrStr(s string) *string { return &s }

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// ---- In-memory SubscriberRepository ----

// MemSubscriberRepo mirrors the storage procedure: a nil CustomerID keeps the
// stored id and an empty one never clears a stored id.
type MemSubscriberRepo struct {
	mu    sync.Mutex
	store map[string]*model.Subscriber // by user id

	Writes int

	FindByUserIDErr error
	ApplyStatusErr  error
	ListErr         error
	CountErr        error
}

var _ repository.SubscriberRepository = (*MemSubscriberRepo)(nil)

func NewMemSubscriberRepo() *MemSubscriberRepo {
	return &MemSubscriberRepo{store: map[string]*model.Subscriber{}}
}

func (m *MemSubscriberRepo) Seed(s *model.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	if cp.PetLimit == 0 {
		cp.PetLimit = model.BasePetLimit + cp.AdditionalPetSlots
	}
	m.store[s.UserID] = &cp
}

func (m *MemSubscriberRepo) Get(userID string) *model.Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[userID]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (m *MemSubscriberRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Subscriber, error) {
	if m.FindByUserIDErr != nil {
		return nil, m.FindByUserIDErr
	}
	if s := m.Get(userID); s != nil {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MemSubscriberRepo) find(match func(*model.Subscriber) bool) (*model.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if match(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MemSubscriberRepo) FindByCustomerID(ctx context.Context, tx repository.Tx, customerID string) (*model.Subscriber, error) {
	return m.find(func(s *model.Subscriber) bool { return customerID != "" && s.ExternalCustomerID == customerID })
}

func (m *MemSubscriberRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.Subscriber, error) {
	email = model.NormalizeEmail(email)
	return m.find(func(s *model.Subscriber) bool { return email != "" && s.Email == email })
}

func (m *MemSubscriberRepo) ApplyStatus(ctx context.Context, tx repository.Tx, u *model.StatusUpdate) (*model.Subscriber, error) {
	if m.ApplyStatusErr != nil {
		return nil, m.ApplyStatusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes++

	s := &model.Subscriber{CreatedAt: testNow}
	if prev, ok := m.store[u.UserID]; ok {
		s.CreatedAt = prev.CreatedAt
		s.ExternalCustomerID = prev.ExternalCustomerID
	}
	if u.CustomerID != nil && strings.TrimSpace(*u.CustomerID) != "" {
		s.ExternalCustomerID = *u.CustomerID
	}
	s.UserID = u.UserID
	s.Email = model.NormalizeEmail(u.Email)
	s.Status = u.Status
	s.Tier = u.Tier
	s.SubscriptionEnd = u.SubscriptionEnd
	s.AdditionalPetSlots = u.AdditionalPetSlots
	s.PetLimit = u.PetLimit()
	s.PaymentFailedAt = u.PaymentFailedAt
	s.GracePeriodEnd = u.GracePeriodEnd
	s.ReactivatedAt = u.ReactivatedAt
	s.CanceledAt = u.CanceledAt
	s.UpdatedAt = testNow
	m.store[u.UserID] = s

	cp := *s
	return &cp, nil
}

func (m *MemSubscriberRepo) ListCustomerIDViolations(ctx context.Context, tx repository.Tx, limit int) ([]*model.Subscriber, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscriber
	for _, s := range m.store {
		if s.ViolatesCustomerIDInvariant() {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemSubscriberRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriberStatus]int, error) {
	if m.CountErr != nil {
		return nil, m.CountErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.SubscriberStatus]int{}
	for _, s := range m.store {
		out[s.Status]++
	}
	return out, nil
}

// ---- In-memory EventLedger ----

type MemEventLedger struct {
	mu      sync.Mutex
	events  map[string]*model.ProcessedEvent
	Inserts int

	ClaimErr error
}

var _ repository.EventLedger = (*MemEventLedger)(nil)

func NewMemEventLedger() *MemEventLedger {
	return &MemEventLedger{events: map[string]*model.ProcessedEvent{}}
}

func (l *MemEventLedger) Claim(ctx context.Context, tx repository.Tx, eventID, eventType string) (bool, error) {
	if l.ClaimErr != nil {
		return false, l.ClaimErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.events[eventID]; ok {
		return false, nil
	}
	l.Inserts++
	l.events[eventID] = &model.ProcessedEvent{EventID: eventID, EventType: eventType, ProcessedAt: testNow}
	return true, nil
}

func (l *MemEventLedger) FindByID(ctx context.Context, tx repository.Tx, eventID string) (*model.ProcessedEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ev, ok := l.events[eventID]; ok {
		cp := *ev
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Mock BillingProvider ----

type MockBillingProvider struct {
	mu sync.Mutex

	FindCustomerByEmailFunc func(ctx context.Context, email string) (*model.BillingCustomer, error)
	GetCustomerFunc         func(ctx context.Context, customerID string) (*model.BillingCustomer, error)
	ListSubscriptionsFunc   func(ctx context.Context, customerID string) ([]model.BillingSubscription, error)

	Calls struct {
		FindByEmail []string
		GetCustomer []string
		List        []string
	}
}

var _ adapter.BillingProvider = (*MockBillingProvider)(nil)

func (m *MockBillingProvider) Name() string { return "mock" }

func (m *MockBillingProvider) FindCustomerByEmail(ctx context.Context, email string) (*model.BillingCustomer, error) {
	m.mu.Lock()
	m.Calls.FindByEmail = append(m.Calls.FindByEmail, email)
	m.mu.Unlock()
	if m.FindCustomerByEmailFunc != nil {
		return m.FindCustomerByEmailFunc(ctx, email)
	}
	return nil, domain.ErrNotFound
}

func (m *MockBillingProvider) GetCustomer(ctx context.Context, customerID string) (*model.BillingCustomer, error) {
	m.mu.Lock()
	m.Calls.GetCustomer = append(m.Calls.GetCustomer, customerID)
	m.mu.Unlock()
	if m.GetCustomerFunc != nil {
		return m.GetCustomerFunc(ctx, customerID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockBillingProvider) ListSubscriptions(ctx context.Context, customerID string) ([]model.BillingSubscription, error) {
	m.mu.Lock()
	m.Calls.List = append(m.Calls.List, customerID)
	m.mu.Unlock()
	if m.ListSubscriptionsFunc != nil {
		return m.ListSubscriptionsFunc(ctx, customerID)
	}
	return nil, nil
}

// ---- Mock Alerter ----

type MockAlerter struct {
	mu      sync.Mutex
	Sent    []adapter.Alert
	SendErr error
}

var _ adapter.Alerter = (*MockAlerter)(nil)

func (m *MockAlerter) Send(ctx context.Context, a adapter.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, a)
	return m.SendErr
}

// ---- Mock Pipeline ----

type MockPipeline struct {
	mu      sync.Mutex
	Targets []Target

	ApplyFunc func(ctx context.Context, t Target) (*model.Subscriber, error)
}

var _ Pipeline = (*MockPipeline)(nil)

func (m *MockPipeline) Apply(ctx context.Context, t Target) (*model.Subscriber, error) {
	m.mu.Lock()
	m.Targets = append(m.Targets, t)
	m.mu.Unlock()
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, t)
	}
	return &model.Subscriber{UserID: t.UserID}, nil
}

// =============================
// Fixtures
// =============================

func activeSub(customerID string, amount int64, periodEnd time.Time, items ...model.BillingLineItem) model.BillingSubscription {
	lines := append([]model.BillingLineItem{{ID: "si_base", PriceID: "price_base", UnitAmount: amount, Quantity: 1}}, items...)
	return model.BillingSubscription{
		ID:               "sub_" + customerID,
		CustomerID:       customerID,
		Status:           model.ProviderStatusActive,
		CurrentPeriodEnd: ptrTime(periodEnd),
		Items:            lines,
	}
}

func addonItem(qty int64, unitsPerItem string) model.BillingLineItem {
	md := map[string]string{"addon_type": "additional_pet"}
	if unitsPerItem != "" {
		md["units_per_item"] = unitsPerItem
	}
	return model.BillingLineItem{ID: "si_addon", PriceID: "price_addon", UnitAmount: 300, Quantity: qty, Metadata: md}
}

func testTiers() TierClassifier { return TierClassifier{BasicMax: 999, PremiumMax: 1999} }

func testAddons() AddonCounter {
	return AddonCounter{Key: "addon_type", Value: "additional_pet", UnitsKey: "units_per_item"}
}

func newTestResolver(p *MockBillingProvider, now time.Time) *StatusResolver {
	r := NewStatusResolver(p, testTiers(), testAddons(), time.Second, newTestLogger())
	r.now = fixedClock(now)
	return r
}

func newTestReconciler(repo *MemSubscriberRepo, p *MockBillingProvider, now time.Time) *reconcileUC {
	uc := NewReconcileUseCase(repo, NewMockTxManager(), newTestResolver(p, now), NewIntegrityGuard(newTestLogger()), newTestLogger())
	uc.now = fixedClock(now)
	return uc
}
