package alert

import (
	"context"

	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/domain/ports/adapter"
)

var _ adapter.Alerter = (*LogAlerter)(nil)

// LogAlerter writes alerts to the log only. Used when no mail transport is configured.
type LogAlerter struct {
	log *zerolog.Logger
}

func NewLogAlerter(logger *zerolog.Logger) *LogAlerter {
	l := logger.With().Str("component", "LogAlerter").Logger()
	return &LogAlerter{log: &l}
}

func (a *LogAlerter) Send(ctx context.Context, al adapter.Alert) error {
	ev := a.log.Warn()
	if al.Severity == adapter.AlertSeverityPage {
		ev = a.log.Error()
	}
	ev.Str("incident_id", al.IncidentID).
		Str("severity", string(al.Severity)).
		Str("details", al.Details).
		Msg(al.Summary)
	return nil
}
