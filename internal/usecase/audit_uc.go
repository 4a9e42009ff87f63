package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/domain/model"
	"pet-subscription-sync/internal/domain/ports/adapter"
	"pet-subscription-sync/internal/domain/ports/repository"
	ucport "pet-subscription-sync/internal/domain/ports/usecase"
	"pet-subscription-sync/internal/infra/logging"
	"pet-subscription-sync/internal/infra/metrics"
)

var _ ucport.Auditor = (*auditUC)(nil)

// auditUC looks for entitled subscribers that lost their external customer
// id. It only reports; nothing is remediated automatically.
type auditUC struct {
	subs    repository.SubscriberRepository
	alerter adapter.Alerter
	limit   int
	now     func() time.Time
	log     *zerolog.Logger
}

func NewAuditUseCase(subs repository.SubscriberRepository, alerter adapter.Alerter, limit int, logger *zerolog.Logger) *auditUC {
	l := logger.With().Str("component", "AuditUC").Logger()
	if limit <= 0 {
		limit = 500
	}
	return &auditUC{
		subs:    subs,
		alerter: alerter,
		limit:   limit,
		now:     time.Now,
		log:     &l,
	}
}

func (u *auditUC) Scan(ctx context.Context) (*ucport.AuditReport, error) {
	defer logging.TraceDuration(u.log, "AuditUC.Scan")()

	violations, err := u.subs.ListCustomerIDViolations(ctx, repository.NoTX, u.limit)
	if err != nil {
		metrics.IncAuditRun("error")
		return nil, fmt.Errorf("list violations: %w", err)
	}
	byStatus, err := u.subs.CountByStatus(ctx, repository.NoTX)
	if err != nil {
		u.log.Warn().Err(err).Msg("failed to count subscribers by status")
	} else {
		metrics.SetSubscribersTotal(byStatus)
	}

	report := &ucport.AuditReport{Violations: violations, ByStatus: byStatus}
	metrics.SetIntegrityViolations(len(violations))
	if len(violations) == 0 {
		metrics.IncAuditRun("clean")
		u.log.Debug().Msg("subscriber audit clean")
		return report, nil
	}

	metrics.IncAuditRun("violations")
	report.IncidentID = ulid.MustNew(ulid.Timestamp(u.now()), rand.Reader).String()

	ids := make([]string, 0, len(violations))
	for _, v := range violations {
		ids = append(ids, v.UserID)
	}
	u.log.Error().
		Str("incident_id", report.IncidentID).
		Int("count", len(violations)).
		Strs("user_ids", ids).
		Msg("entitled subscribers without external customer id")

	alert := adapter.Alert{
		IncidentID: report.IncidentID,
		Severity:   adapter.AlertSeverityPage,
		Summary:    fmt.Sprintf("%d entitled subscriber(s) without external customer id", len(violations)),
		Details:    describeViolations(violations),
	}
	if err := u.alerter.Send(ctx, alert); err != nil {
		// the error log above is the page of record
		u.log.Error().Err(err).Str("incident_id", report.IncidentID).Msg("failed to deliver alert")
	}
	return report, nil
}

func describeViolations(vs []*model.Subscriber) string {
	var b strings.Builder
	for _, v := range vs {
		fmt.Fprintf(&b, "user_id=%s status=%s updated_at=%s\n", v.UserID, v.Status, v.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}
