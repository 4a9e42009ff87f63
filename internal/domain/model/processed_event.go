package model

import "time"

// ProcessedEvent is one entry of the billing event idempotency ledger.
type ProcessedEvent struct {
	EventID     string
	EventType   string
	ProcessedAt time.Time
}
