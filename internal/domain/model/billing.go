package model

import (
	"strings"
	"time"
)

// ProviderSubscriptionStatus mirrors the billing provider's subscription states.
type ProviderSubscriptionStatus string

const (
	ProviderStatusActive            ProviderSubscriptionStatus = "active"
	ProviderStatusTrialing          ProviderSubscriptionStatus = "trialing"
	ProviderStatusPastDue           ProviderSubscriptionStatus = "past_due"
	ProviderStatusUnpaid            ProviderSubscriptionStatus = "unpaid"
	ProviderStatusIncomplete        ProviderSubscriptionStatus = "incomplete"
	ProviderStatusIncompleteExpired ProviderSubscriptionStatus = "incomplete_expired"
	ProviderStatusCanceled          ProviderSubscriptionStatus = "canceled"
	ProviderStatusPaused            ProviderSubscriptionStatus = "paused"
)

func (s ProviderSubscriptionStatus) Current() bool {
	return s == ProviderStatusActive || s == ProviderStatusTrialing
}

func (s ProviderSubscriptionStatus) PaymentProblem() bool {
	switch s {
	case ProviderStatusPastDue, ProviderStatusUnpaid, ProviderStatusIncomplete:
		return true
	}
	return false
}

// BillingCustomer is the provider-agnostic customer record.
type BillingCustomer struct {
	ID       string
	Email    string
	Metadata map[string]string
}

// UserID returns the account id stamped on the customer at checkout, if any.
func (c *BillingCustomer) UserID() string {
	if c == nil || c.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(c.Metadata["user_id"])
}

// BillingSubscription is the provider-agnostic subscription record.
type BillingSubscription struct {
	ID               string
	CustomerID       string
	Status           ProviderSubscriptionStatus
	TrialEnd         *time.Time
	CurrentPeriodEnd *time.Time
	Items            []BillingLineItem
}

// BillingLineItem is one priced line of a subscription.
type BillingLineItem struct {
	ID         string
	PriceID    string
	UnitAmount int64 // minor currency units
	Quantity   int64
	Metadata   map[string]string // item metadata merged over price metadata
}

// BillingEventType names the provider events the ingestor understands.
type BillingEventType string

const (
	EventSubscriptionCreated     BillingEventType = "customer.subscription.created"
	EventSubscriptionUpdated     BillingEventType = "customer.subscription.updated"
	EventSubscriptionDeleted     BillingEventType = "customer.subscription.deleted"
	EventInvoicePaymentFailed    BillingEventType = "invoice.payment_failed"
	EventInvoicePaymentSucceeded BillingEventType = "invoice.payment_succeeded"
)

// BillingEvent is a verified, decoded provider event.
type BillingEvent struct {
	ID            string
	Type          BillingEventType
	CustomerID    string
	CustomerEmail string
	// ChangedFields lists the top-level keys of the provider's previous
	// attributes. Nil when the provider sent none.
	ChangedFields []string
}
