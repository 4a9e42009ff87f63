//go:build integration

package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/ports/repository"
)

func TestEventLedgerRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ledger := NewEventLedgerRepo(testPool)
	ctx := context.Background()

	t.Run("should claim an event once", func(t *testing.T) {
		cleanup(t)
		claimed, err := ledger.Claim(ctx, repository.NoTX, "evt_1", "invoice.payment_failed")
		require.NoError(t, err)
		assert.True(t, claimed)

		claimed, err = ledger.Claim(ctx, repository.NoTX, "evt_1", "invoice.payment_failed")
		require.NoError(t, err)
		assert.False(t, claimed)

		ev, err := ledger.FindByID(ctx, repository.NoTX, "evt_1")
		require.NoError(t, err)
		assert.Equal(t, "invoice.payment_failed", ev.EventType)
		assert.False(t, ev.ProcessedAt.IsZero())
	})

	t.Run("should let exactly one concurrent claimer win", func(t *testing.T) {
		cleanup(t)
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := ledger.Claim(ctx, repository.NoTX, "evt_race", "customer.subscription.updated")
				if err == nil && ok {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	})

	t.Run("should reject empty ids", func(t *testing.T) {
		_, err := ledger.Claim(ctx, repository.NoTX, "  ", "x")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = ledger.FindByID(ctx, repository.NoTX, "evt_missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
