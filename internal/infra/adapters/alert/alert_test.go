//go:build !integration

package alert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/ports/adapter"
)

var testAlert = adapter.Alert{
	IncidentID: "01HZX3Q5K6",
	Severity:   adapter.AlertSeverityPage,
	Summary:    "subscribers without a customer id",
	Details:    "user_id=u1 status=active",
}

func TestMailjetAlerter_Send(t *testing.T) {
	logger := zerolog.New(io.Discard)
	a, err := NewMailjetAlerter("pub", "priv", "ops@example.com", "oncall@example.com", &logger)
	require.NoError(t, err)

	var got *mailjet.MessagesV31
	a.send = func(msgs *mailjet.MessagesV31) error {
		got = msgs
		return nil
	}

	require.NoError(t, a.Send(context.Background(), testAlert))
	require.NotNil(t, got)
	require.Len(t, got.Info, 1)

	msg := got.Info[0]
	assert.Equal(t, "ops@example.com", msg.From.Email)
	assert.Equal(t, "oncall@example.com", (*msg.To)[0].Email)
	assert.Equal(t, "[PAGE] subscribers without a customer id", msg.Subject)
	assert.Contains(t, msg.TextPart, "user_id=u1")
	assert.Equal(t, testAlert.IncidentID, msg.CustomID)

	t.Run("should wrap transport errors", func(t *testing.T) {
		a.send = func(*mailjet.MessagesV31) error { return errors.New("401") }
		assert.Error(t, a.Send(context.Background(), testAlert))
	})

	t.Run("should not send on a canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, a.Send(ctx, testAlert), context.Canceled)
	})
}

func TestNewMailjetAlerter_RequiresConfig(t *testing.T) {
	logger := zerolog.New(io.Discard)
	_, err := NewMailjetAlerter("pub", "", "ops@example.com", "oncall@example.com", &logger)
	assert.ErrorIs(t, err, domain.ErrMissingConfig)
}

func TestLogAlerter_Send(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	require.NoError(t, NewLogAlerter(&logger).Send(context.Background(), testAlert))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), testAlert.IncidentID)
}
