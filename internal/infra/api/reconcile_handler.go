package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/model"
	ucport "pet-subscription-sync/internal/domain/ports/usecase"
	"pet-subscription-sync/internal/infra/logging"
)

// Limiter throttles callers of the pull path.
type Limiter interface {
	Allow(ctx context.Context, subject string) bool
}

type subscriptionResponse struct {
	Subscribed       bool       `json:"subscribed"`
	Status           string     `json:"status"`
	SubscriptionTier *string    `json:"subscription_tier"`
	SubscriptionEnd  *time.Time `json:"subscription_end"`
	AdditionalPets   int        `json:"additional_pets"`
	PetLimit         int        `json:"pet_limit"`
	GracePeriodEnd   *time.Time `json:"grace_period_end"`
}

func toSubscriptionResponse(s *model.Subscriber) subscriptionResponse {
	out := subscriptionResponse{
		Subscribed:      s.Status == model.SubscriberStatusActive,
		Status:          string(s.Status),
		SubscriptionEnd: s.SubscriptionEnd,
		AdditionalPets:  s.AdditionalPetSlots,
		PetLimit:        s.PetLimit,
		GracePeriodEnd:  s.GracePeriodEnd,
	}
	if s.Tier != nil {
		t := string(*s.Tier)
		out.SubscriptionTier = &t
	}
	if out.PetLimit < model.BasePetLimit {
		out.PetLimit = model.BasePetLimit
	}
	return out
}

// ReconcileHandler is the authenticated pull path: it re-resolves the caller
// against the provider and returns the stored entitlement.
type ReconcileHandler struct {
	tokens     *TokenVerifier
	limiter    Limiter
	reconciler ucport.Reconciler
	dev        bool
	log        *zerolog.Logger
}

func NewReconcileHandler(tokens *TokenVerifier, limiter Limiter, reconciler ucport.Reconciler, dev bool, logger *zerolog.Logger) *ReconcileHandler {
	l := logger.With().Str("component", "ReconcileHandler").Logger()
	return &ReconcileHandler{tokens: tokens, limiter: limiter, reconciler: reconciler, dev: dev, log: &l}
}

func (h *ReconcileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	id, err := h.tokens.ParseFromRequest(r)
	if err != nil {
		if errors.Is(err, domain.ErrMissingConfig) {
			h.log.Error().Msg("jwt secret not configured")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "authentication not configured"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	ctx := logging.WithUserID(r.Context(), id.UserID)
	log := logging.With(ctx, h.log)

	if h.limiter != nil && !h.limiter.Allow(ctx, id.UserID) {
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
		return
	}

	sub, err := h.reconciler.Sync(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid identity"})
			return
		}
		log.Error().Err(err).Str("email", logging.Redact(id.Email, h.dev)).Msg("subscription sync failed")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "subscription state temporarily unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
}
