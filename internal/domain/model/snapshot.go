package model

import "time"

// Snapshot is the resolver's view of a subscriber's billing state before it
// is merged into the stored record.
type Snapshot struct {
	Subscribed      bool
	Tier            *SubscriptionTier
	SubscriptionEnd *time.Time
	AdditionalUnits int
	PetLimit        int
	CustomerID      string

	// Provider evidence used by the grace policy.
	HasCurrent        bool
	HasPaymentProblem bool

	// Preserved is set when the stored record was kept because the provider
	// could not establish anything about the customer.
	Preserved bool
	// LookupFailed is set when a provider call errored or timed out.
	LookupFailed bool
}

// InactiveSnapshot is the result for a customer without any subscription evidence.
func InactiveSnapshot(customerID string) *Snapshot {
	return &Snapshot{PetLimit: BasePetLimit, CustomerID: customerID}
}

// SnapshotFromSubscriber rebuilds a snapshot out of a stored record.
func SnapshotFromSubscriber(s *Subscriber) *Snapshot {
	if s == nil {
		return InactiveSnapshot("")
	}
	return &Snapshot{
		Subscribed:      s.Status == SubscriberStatusActive,
		Tier:            s.Tier,
		SubscriptionEnd: s.SubscriptionEnd,
		AdditionalUnits: s.AdditionalPetSlots,
		PetLimit:        s.PetLimit,
		CustomerID:      s.ExternalCustomerID,
		HasCurrent:      s.Status == SubscriberStatusActive,
	}
}

// StatusUpdate is the write payload for one subscriber. A nil CustomerID
// omits the column from the write entirely.
type StatusUpdate struct {
	UserID             string
	Email              string
	CustomerID         *string
	Status             SubscriberStatus
	Tier               *SubscriptionTier
	SubscriptionEnd    *time.Time
	AdditionalPetSlots int
	PaymentFailedAt    *time.Time
	GracePeriodEnd     *time.Time
	ReactivatedAt      *time.Time
	CanceledAt         *time.Time
}

// PetLimit is always derived from the add-on slots.
func (u *StatusUpdate) PetLimit() int { return BasePetLimit + u.AdditionalPetSlots }
