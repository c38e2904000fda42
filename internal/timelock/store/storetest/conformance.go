// Package storetest holds behaviour shared by every unlock request store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unikyc/internal/timelock/models"
	id "unikyc/pkg/domain"
	"unikyc/pkg/platform/sentinel"
)

// Store is the contract the coordinator relies on.
type Store interface {
	Save(ctx context.Context, req *models.UnlockRequest) error
	FindByID(ctx context.Context, requestID id.UnlockRequestID) (*models.UnlockRequest, error)
	Execute(ctx context.Context, requestID id.UnlockRequestID, validate func(*models.UnlockRequest) error, mutate func(*models.UnlockRequest)) (*models.UnlockRequest, error)
	ListPending(ctx context.Context) ([]*models.UnlockRequest, error)
}

func newRequest(registeredAt time.Time) *models.UnlockRequest {
	return &models.UnlockRequest{
		ID:                id.NewUnlockRequestID(),
		CiphertextRef:     "bafkreitest",
		UnlockBlockHeight: 1200,
		GasBudget:         100000,
		State:             models.StateRegistered,
		RegisteredAt:      registeredAt.UTC().Truncate(time.Millisecond),
	}
}

// RunConformance exercises a fresh store from newStore for each subtest.
func RunConformance(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("save then find", func(t *testing.T) {
		s := newStore(t)
		req := newRequest(base)
		require.NoError(t, s.Save(ctx, req))

		got, err := s.FindByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, req.ID, got.ID)
		assert.Equal(t, req.UnlockBlockHeight, got.UnlockBlockHeight)
		assert.Equal(t, models.StateRegistered, got.State)
	})

	t.Run("duplicate save conflicts", func(t *testing.T) {
		s := newStore(t)
		req := newRequest(base)
		require.NoError(t, s.Save(ctx, req))
		assert.ErrorIs(t, s.Save(ctx, req), sentinel.ErrConflict)
	})

	t.Run("unknown request", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindByID(ctx, id.NewUnlockRequestID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		_, err = s.Execute(ctx, id.NewUnlockRequestID(),
			func(*models.UnlockRequest) error { return nil },
			func(*models.UnlockRequest) {})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("execute applies mutation and drops from pending", func(t *testing.T) {
		s := newStore(t)
		first, second := newRequest(base), newRequest(base.Add(time.Minute))
		require.NoError(t, s.Save(ctx, second))
		require.NoError(t, s.Save(ctx, first))

		pending, err := s.ListPending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, first.ID, pending[0].ID)

		at := base.Add(time.Hour)
		updated, err := s.Execute(ctx, first.ID,
			func(*models.UnlockRequest) error { return nil },
			func(r *models.UnlockRequest) {
				r.State = models.StateDecrypted
				r.DecryptedAt = &at
				r.MaterialDigest = "digest"
			})
		require.NoError(t, err)
		assert.Equal(t, models.StateDecrypted, updated.State)

		got, err := s.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "digest", got.MaterialDigest)
		require.NotNil(t, got.DecryptedAt)
		assert.True(t, at.Equal(*got.DecryptedAt))

		pending, err = s.ListPending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, second.ID, pending[0].ID)
	})

	t.Run("validation failure leaves request untouched", func(t *testing.T) {
		s := newStore(t)
		req := newRequest(base)
		require.NoError(t, s.Save(ctx, req))

		boom := errors.New("rejected")
		_, err := s.Execute(ctx, req.ID,
			func(*models.UnlockRequest) error { return boom },
			func(r *models.UnlockRequest) { r.State = models.StateDecrypted })
		assert.ErrorIs(t, err, boom)

		got, err := s.FindByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateRegistered, got.State)
	})

	t.Run("concurrent decrypts apply once", func(t *testing.T) {
		s := newStore(t)
		req := newRequest(base)
		require.NoError(t, s.Save(ctx, req))

		alreadyDone := errors.New("already decrypted")
		const workers = 10
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			applied int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Execute(ctx, req.ID,
					func(r *models.UnlockRequest) error {
						if r.State == models.StateDecrypted {
							return alreadyDone
						}
						return nil
					},
					func(r *models.UnlockRequest) { r.State = models.StateDecrypted })
				if err == nil {
					mu.Lock()
					applied++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, applied)
	})
}
