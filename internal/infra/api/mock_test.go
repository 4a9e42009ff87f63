//go:build !integration

package api

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"pet-subscription-sync/internal/domain/model"
	ucport "pet-subscription-sync/internal/domain/ports/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type fakeIngestor struct {
	mu      sync.Mutex
	events  []*model.BillingEvent
	outcome ucport.WebhookOutcome
	err     error
}

func (f *fakeIngestor) Ingest(ctx context.Context, ev *model.BillingEvent) (ucport.WebhookOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	if f.err != nil {
		return ucport.WebhookFailed, f.err
	}
	if f.outcome == "" {
		return ucport.WebhookProcessed, nil
	}
	return f.outcome, nil
}

type fakeReconciler struct {
	calls []ucport.Identity
	sub   *model.Subscriber
	err   error
}

func (f *fakeReconciler) Sync(ctx context.Context, id ucport.Identity) (*model.Subscriber, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return nil, f.err
	}
	return f.sub, nil
}

type fakeLimiter struct{ allow bool }

func (f fakeLimiter) Allow(ctx context.Context, subject string) bool { return f.allow }
