package repository

import (
	"context"

	"pet-subscription-sync/internal/domain/model"
)

// EventLedger records processed billing events.
type EventLedger interface {
	// Claim atomically records eventID. It returns false when the id was
	// already recorded by an earlier (or concurrent) caller.
	Claim(ctx context.Context, tx Tx, eventID, eventType string) (bool, error)
	FindByID(ctx context.Context, tx Tx, eventID string) (*model.ProcessedEvent, error)
}
