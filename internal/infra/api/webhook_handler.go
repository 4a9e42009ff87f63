package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/ports/adapter"
	ucport "pet-subscription-sync/internal/domain/ports/usecase"
	"pet-subscription-sync/internal/infra/logging"
	"pet-subscription-sync/internal/infra/metrics"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

type webhookResponse struct {
	Received bool   `json:"received"`
	Status   string `json:"status,omitempty"`
}

// WebhookHandler verifies provider deliveries and hands them to the ingestor.
type WebhookHandler struct {
	verifier adapter.EventVerifier
	ingestor ucport.EventIngestor
	log      *zerolog.Logger
}

func NewWebhookHandler(verifier adapter.EventVerifier, ingestor ucport.EventIngestor, logger *zerolog.Logger) *WebhookHandler {
	l := logger.With().Str("component", "WebhookHandler").Logger()
	return &WebhookHandler{verifier: verifier, ingestor: ingestor, log: &l}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logging.With(r.Context(), h.log)

	reject := func(status int, reason, msg string) {
		metrics.ObserveWebhook("rejected", reason, start)
		writeJSON(w, status, errorResponse{Error: msg})
	}

	if r.Method != http.MethodPost {
		reject(http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if !h.verifier.Configured() {
		log.Error().Msg("webhook secret not configured")
		reject(http.StatusInternalServerError, "missing_secret", "webhook secret not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		reject(http.StatusBadRequest, "bad_body", "failed to read request body")
		return
	}

	ev, err := h.verifier.Verify(payload, r.Header.Get(h.verifier.SignatureHeader()))
	if err != nil {
		if errors.Is(err, domain.ErrMissingConfig) {
			reject(http.StatusInternalServerError, "missing_secret", "webhook secret not configured")
			return
		}
		log.Warn().Err(err).Msg("webhook verification failed")
		reject(http.StatusBadRequest, "bad_signature", "invalid signature")
		return
	}

	ctx := logging.WithEventID(r.Context(), ev.ID)
	outcome, err := h.ingestor.Ingest(ctx, ev)
	if err != nil {
		logging.With(ctx, h.log).Error().Err(err).Str("event_type", string(ev.Type)).Msg("could not claim billing event")
		reject(http.StatusInternalServerError, "ledger_error", "failed to record event")
		return
	}

	metrics.ObserveWebhook(string(outcome), "", start)
	status := string(outcome)
	if outcome == ucport.WebhookFailed {
		// claimed but not applied; redelivery would be a duplicate, the next pull heals it
		status = string(ucport.WebhookProcessed)
	}
	writeJSON(w, http.StatusOK, webhookResponse{Received: true, Status: status})
}
