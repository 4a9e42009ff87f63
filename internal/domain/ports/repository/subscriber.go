package repository

import (
	"context"

	"pet-subscription-sync/internal/domain/model"
)

// SubscriberRepository is the port for cached subscriber billing records.
type SubscriberRepository interface {
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.Subscriber, error)
	FindByCustomerID(ctx context.Context, tx Tx, customerID string) (*model.Subscriber, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.Subscriber, error)

	// ApplyStatus upserts the derived status fields in one storage statement.
	// A nil u.CustomerID leaves the stored identifier untouched, and the store
	// never lets a non-empty identifier become empty: such writes fail with
	// domain.ErrIntegrityViolation.
	ApplyStatus(ctx context.Context, tx Tx, u *model.StatusUpdate) (*model.Subscriber, error)

	// ListCustomerIDViolations returns entitled records without a customer id.
	ListCustomerIDViolations(ctx context.Context, tx Tx, limit int) ([]*model.Subscriber, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriberStatus]int, error)
}
