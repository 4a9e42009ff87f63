package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/model"
	"pet-subscription-sync/internal/domain/ports/repository"
)

var _ repository.EventLedger = (*eventLedgerRepo)(nil)

type eventLedgerRepo struct {
	pool *pgxpool.Pool
}

func NewEventLedgerRepo(pool *pgxpool.Pool) *eventLedgerRepo {
	return &eventLedgerRepo{pool: pool}
}

// Claim relies on claim_billing_event: of any number of concurrent callers
// for the same id exactly one sees true.
func (r *eventLedgerRepo) Claim(ctx context.Context, tx repository.Tx, eventID, eventType string) (bool, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, domain.ErrInvalidArgument
	}
	var claimed bool
	if err := pickRow(ctx, r.pool, tx, `SELECT claim_billing_event($1, $2);`, eventID, eventType).Scan(&claimed); err != nil {
		return false, mapError(err)
	}
	return claimed, nil
}

func (r *eventLedgerRepo) FindByID(ctx context.Context, tx repository.Tx, eventID string) (*model.ProcessedEvent, error) {
	const q = `SELECT event_id, event_type, processed_at FROM processed_events WHERE event_id=$1;`
	var ev model.ProcessedEvent
	if err := pickRow(ctx, r.pool, tx, q, eventID).Scan(&ev.EventID, &ev.EventType, &ev.ProcessedAt); err != nil {
		return nil, mapError(err)
	}
	return &ev, nil
}

