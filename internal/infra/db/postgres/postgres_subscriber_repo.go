package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/model"
	"pet-subscription-sync/internal/domain/ports/repository"
)

var _ repository.SubscriberRepository = (*subscriberRepo)(nil)

type subscriberRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriberRepo(pool *pgxpool.Pool) *subscriberRepo {
	return &subscriberRepo{pool: pool}
}

const subscriberColumns = `
user_id, email, external_customer_id, status, subscription_tier, subscription_end,
pet_limit, additional_pet_slots, payment_failed_at, grace_period_end,
reactivated_at, canceled_at, created_at, updated_at`

func (r *subscriberRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Subscriber, error) {
	q := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE user_id=$1;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *subscriberRepo) FindByCustomerID(ctx context.Context, tx repository.Tx, customerID string) (*model.Subscriber, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE external_customer_id=$1 ORDER BY created_at LIMIT 1;`
	return r.queryOne(ctx, tx, q, customerID)
}

func (r *subscriberRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.Subscriber, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE email=$1;`
	return r.queryOne(ctx, tx, q, email)
}

// ApplyStatus goes through apply_subscriber_status so the identifier rule is
// enforced in the same statement as the write.
func (r *subscriberRepo) ApplyStatus(ctx context.Context, tx repository.Tx, u *model.StatusUpdate) (*model.Subscriber, error) {
	if u == nil || strings.TrimSpace(u.UserID) == "" || !u.Status.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	q := `SELECT ` + subscriberColumns + ` FROM apply_subscriber_status($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`

	var tier *string
	if u.Tier != nil {
		t := string(*u.Tier)
		tier = &t
	}
	row := pickRow(ctx, r.pool, tx, q,
		u.UserID, model.NormalizeEmail(u.Email), u.CustomerID, string(u.Status), tier, u.SubscriptionEnd,
		u.AdditionalPetSlots, u.PaymentFailedAt, u.GracePeriodEnd, u.ReactivatedAt, u.CanceledAt,
	)
	s, err := scanSubscriber(row)
	if err != nil {
		return nil, mapError(err)
	}
	return s, nil
}

func (r *subscriberRepo) ListCustomerIDViolations(ctx context.Context, tx repository.Tx, limit int) ([]*model.Subscriber, error) {
	if limit <= 0 {
		limit = 500
	}
	q := `SELECT ` + subscriberColumns + `
  FROM subscribers
 WHERE COALESCE(external_customer_id, '') = ''
   AND status IN ('active', 'grace')
 ORDER BY user_id
 LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*model.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *subscriberRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriberStatus]int, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT status, COUNT(*) FROM subscribers GROUP BY status;`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make(map[model.SubscriberStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count by status: %w", err)
		}
		out[model.SubscriberStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *subscriberRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Subscriber, error) {
	s, err := scanSubscriber(pickRow(ctx, r.pool, tx, q, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return s, nil
}

func scanSubscriber(row pgx.Row) (*model.Subscriber, error) {
	var (
		s          model.Subscriber
		customerID sql.NullString
		tier       sql.NullString
		status     string
	)
	if err := row.Scan(
		&s.UserID, &s.Email, &customerID, &status, &tier, &s.SubscriptionEnd,
		&s.PetLimit, &s.AdditionalPetSlots, &s.PaymentFailedAt, &s.GracePeriodEnd,
		&s.ReactivatedAt, &s.CanceledAt, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Status = model.SubscriberStatus(status)
	if customerID.Valid {
		s.ExternalCustomerID = customerID.String
	}
	if tier.Valid {
		t := model.SubscriptionTier(tier.String)
		s.Tier = &t
	}
	return &s, nil
}
