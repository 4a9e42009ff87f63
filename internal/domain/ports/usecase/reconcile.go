package usecase

import (
	"context"

	"pet-subscription-sync/internal/domain/model"
)

// Identity is the authenticated caller of the pull path.
type Identity struct {
	UserID string
	Email  string
}

// Reconciler is what entry points need from the reconciliation pipeline.
type Reconciler interface {
	// Sync resolves the caller against the provider and returns the stored
	// record. It degrades to the last known record instead of failing on
	// provider errors.
	Sync(ctx context.Context, id Identity) (*model.Subscriber, error)
}

// WebhookOutcome is what happened to one verified delivery.
type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookFailed    WebhookOutcome = "failed"
)

// EventIngestor applies verified billing events.
type EventIngestor interface {
	// Ingest returns an error only when the event could not be claimed; the
	// provider should then redeliver. Failures after the claim are reported
	// through the WebhookFailed outcome.
	Ingest(ctx context.Context, ev *model.BillingEvent) (WebhookOutcome, error)
}

// Auditor scans the store for invariant violations.
type Auditor interface {
	Scan(ctx context.Context) (*AuditReport, error)
}

type AuditReport struct {
	IncidentID string
	Violations []*model.Subscriber
	ByStatus   map[model.SubscriberStatus]int
}
