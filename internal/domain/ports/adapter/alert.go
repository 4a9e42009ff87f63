package adapter

import "context"

type AlertSeverity string

const (
	AlertSeverityWarning AlertSeverity = "warning"
	AlertSeverityPage    AlertSeverity = "page"
)

type Alert struct {
	IncidentID string
	Severity   AlertSeverity
	Summary    string
	Details    string
}

// Alerter delivers operator alerts.
type Alerter interface {
	Send(ctx context.Context, a Alert) error
}
