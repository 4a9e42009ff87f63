package redis

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/infra/metrics"
)

type counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// RateLimiter is a fixed-window counter. A Redis failure lets the request
// through; throttling protects the provider, it does not gate correctness.
type RateLimiter struct {
	client counter
	scope  string
	limit  int
	window time.Duration
	log    *zerolog.Logger
}

func NewRateLimiter(client *Client, scope string, limit int, window time.Duration, logger *zerolog.Logger) *RateLimiter {
	return newRateLimiter(client, scope, limit, window, logger)
}

func newRateLimiter(client counter, scope string, limit int, window time.Duration, logger *zerolog.Logger) *RateLimiter {
	l := logger.With().Str("component", "RateLimiter").Str("scope", scope).Logger()
	return &RateLimiter{client: client, scope: scope, limit: limit, window: window, log: &l}
}

// Allow counts one request for subject and reports whether it fits the window.
func (r *RateLimiter) Allow(ctx context.Context, subject string) bool {
	if r == nil || r.client == nil || r.limit <= 0 {
		return true
	}
	key := Key(r.scope, subject)
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		metrics.IncRateLimit(r.scope, "error")
		return true
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window); err != nil {
			r.log.Warn().Err(err).Msg("rate limiter expire failed")
		}
	}
	if count > int64(r.limit) {
		metrics.IncRateLimit(r.scope, "limited")
		return false
	}
	metrics.IncRateLimit(r.scope, "allowed")
	return true
}

func Key(scope, subject string) string {
	return "rate_limit:" + scope + ":" + subject
}
