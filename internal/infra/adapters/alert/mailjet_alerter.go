package alert

import (
	"context"
	"fmt"
	"strings"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/ports/adapter"
)

var _ adapter.Alerter = (*MailjetAlerter)(nil)

// MailjetAlerter e-mails operator alerts through Mailjet's v3.1 send API.
type MailjetAlerter struct {
	sender    string
	recipient string
	send      func(msgs *mailjet.MessagesV31) error
	log       *zerolog.Logger
}

func NewMailjetAlerter(publicKey, privateKey, sender, recipient string, logger *zerolog.Logger) (*MailjetAlerter, error) {
	if publicKey == "" || privateKey == "" || sender == "" || recipient == "" {
		return nil, fmt.Errorf("mailjet alerter: %w", domain.ErrMissingConfig)
	}
	clt := mailjet.NewMailjetClient(publicKey, privateKey)
	l := logger.With().Str("component", "MailjetAlerter").Logger()
	return &MailjetAlerter{
		sender:    sender,
		recipient: recipient,
		send: func(msgs *mailjet.MessagesV31) error {
			_, err := clt.SendMailV31(msgs)
			return err
		},
		log: &l,
	}, nil
}

func (a *MailjetAlerter) Send(ctx context.Context, al adapter.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msgs := mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: a.sender},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: a.recipient}},
		Subject:  subject(al),
		TextPart: body(al),
		CustomID: al.IncidentID,
	}}}
	if err := a.send(&msgs); err != nil {
		return fmt.Errorf("could not send alert mail: %w", err)
	}
	a.log.Info().Str("incident_id", al.IncidentID).Str("severity", string(al.Severity)).Msg("alert mail sent")
	return nil
}

func subject(al adapter.Alert) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(al.Severity)), al.Summary)
}

func body(al adapter.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Incident: %s\n", al.IncidentID)
	fmt.Fprintf(&b, "Severity: %s\n\n", al.Severity)
	b.WriteString(al.Summary)
	if al.Details != "" {
		b.WriteString("\n\n")
		b.WriteString(al.Details)
	}
	return b.String()
}
