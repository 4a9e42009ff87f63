package usecase

import (
	"strings"

	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/domain/model"
	"pet-subscription-sync/internal/infra/metrics"
)

// IntegrityGuard builds the final write payload so that a stored external
// customer id can never be replaced by an empty or different one. The
// storage layer enforces the same rule; this copy keeps the write clean and
// makes omissions visible in logs and metrics.
type IntegrityGuard struct {
	log *zerolog.Logger
}

func NewIntegrityGuard(logger *zerolog.Logger) *IntegrityGuard {
	l := logger.With().Str("component", "IntegrityGuard").Logger()
	return &IntegrityGuard{log: &l}
}

// Apply returns a copy of incoming whose CustomerID is nil (omit the column)
// whenever writing it would lose or change the stored identifier.
func (g *IntegrityGuard) Apply(existing *model.Subscriber, incoming *model.StatusUpdate) *model.StatusUpdate {
	out := *incoming

	stored := ""
	if existing != nil {
		stored = strings.TrimSpace(existing.ExternalCustomerID)
	}
	computed := ""
	if incoming.CustomerID != nil {
		computed = strings.TrimSpace(*incoming.CustomerID)
	}

	switch {
	case stored == "":
		// first-time population; "" is written as NULL
		out.CustomerID = &computed
	case computed == stored:
		out.CustomerID = &stored
	case computed == "":
		out.CustomerID = nil
		metrics.IncIntegrityOmitted("empty")
		g.log.Warn().
			Str("user_id", incoming.UserID).
			Str("stored_customer_id", stored).
			Msg("omitting empty external customer id from write")
	default:
		out.CustomerID = nil
		metrics.IncIntegrityOmitted("mismatch")
		g.log.Error().
			Str("user_id", incoming.UserID).
			Str("stored_customer_id", stored).
			Str("computed_customer_id", computed).
			Msg("refusing to replace external customer id")
	}
	return &out
}
