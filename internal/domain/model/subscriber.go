package model

import (
	"strings"
	"time"

	"pet-subscription-sync/internal/domain"
)

type SubscriberStatus string

const (
	SubscriberStatusInactive  SubscriberStatus = "inactive"
	SubscriberStatusActive    SubscriberStatus = "active"
	SubscriberStatusGrace     SubscriberStatus = "grace"
	SubscriberStatusSuspended SubscriberStatus = "suspended"
)

func (s SubscriberStatus) Valid() bool {
	switch s {
	case SubscriberStatusInactive, SubscriberStatusActive, SubscriberStatusGrace, SubscriberStatusSuspended:
		return true
	}
	return false
}

// Entitled reports whether the status keeps paid capacity available.
// Grace keeps service running while the provider retries the payment.
func (s SubscriberStatus) Entitled() bool {
	return s == SubscriberStatusActive || s == SubscriberStatusGrace
}

type SubscriptionTier string

const (
	TierBasic      SubscriptionTier = "basic"
	TierPremium    SubscriptionTier = "premium"
	TierEnterprise SubscriptionTier = "enterprise"
)

// BasePetLimit is the number of pet profiles every account gets.
const BasePetLimit = 1

// GracePeriod is the fixed length of the window opened by a payment failure.
const GracePeriod = 14 * 24 * time.Hour

// Subscriber is the locally cached billing state of one end-user account.
type Subscriber struct {
	UserID             string
	Email              string
	ExternalCustomerID string // "" when the provider customer is not known yet
	Status             SubscriberStatus
	Tier               *SubscriptionTier
	SubscriptionEnd    *time.Time
	PetLimit           int
	AdditionalPetSlots int
	PaymentFailedAt    *time.Time
	GracePeriodEnd     *time.Time
	ReactivatedAt      *time.Time
	CanceledAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewSubscriber returns an inactive record for a user that has never been resolved.
func NewSubscriber(userID, email string) (*Subscriber, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Subscriber{
		UserID:    userID,
		Email:     NormalizeEmail(email),
		Status:    SubscriberStatusInactive,
		PetLimit:  BasePetLimit,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Subscriber) IsZero() bool { return s == nil || s.UserID == "" }

func (s *Subscriber) HasCustomerID() bool {
	return s != nil && strings.TrimSpace(s.ExternalCustomerID) != ""
}

// InGraceWindow reports whether a grace window has been recorded.
func (s *Subscriber) InGraceWindow() bool {
	return s != nil && s.GracePeriodEnd != nil
}

// ShowsPriorActivity reports whether the record carries evidence that the
// account was paying recently. Such records are not downgraded on missing
// provider evidence.
func (s *Subscriber) ShowsPriorActivity(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.Status.Entitled() {
		return true
	}
	return s.SubscriptionEnd != nil && s.SubscriptionEnd.After(now)
}

// ViolatesCustomerIDInvariant is true for records whose state is unreachable
// without a resolved provider customer.
func (s *Subscriber) ViolatesCustomerIDInvariant() bool {
	return s != nil && !s.HasCustomerID() && s.Status.Entitled()
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
