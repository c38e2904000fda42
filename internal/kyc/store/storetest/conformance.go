// Package storetest holds behaviour shared by every KYC record store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "unikyc/internal/identity/models"
	"unikyc/internal/kyc/models"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	"unikyc/pkg/platform/sentinel"
)

// Store is the contract the lifecycle engine relies on.
type Store interface {
	Current(ctx context.Context, addr id.Address) (*models.Record, error)
	FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error)
	FindByUnlockRequest(ctx context.Context, requestID id.UnlockRequestID) (*models.Record, error)
	ListByAddress(ctx context.Context, addr id.Address) ([]*models.Record, error)
	CreateSuperseding(ctx context.Context, rec *models.Record, expectedCurrent *id.RecordID) error
	Execute(ctx context.Context, recordID id.RecordID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error)
}

const addr = id.Address("0x4444444444444444444444444444444444444444")

var base = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

// NewRecord builds a valid pending record for addr created at createdAt.
func NewRecord(t *testing.T, address id.Address, createdAt time.Time) *models.Record {
	t.Helper()
	liveness := 0.93
	r, err := models.NewPendingRecord(
		identity.CanonicalIdentifier{Address: address, Name: "alice.eth"},
		models.Scheme{TotalShares: 3, RequiredShares: 2, ShareDigests: []string{"d1", "d2", "d3"}},
		"bafkreipayload",
		models.TimeLock{UnlockBlockHeight: 1100, RequestID: id.NewUnlockRequestID()},
		&liveness,
		createdAt.UTC(),
	)
	require.NoError(t, err)
	return r
}

// RunConformance exercises a fresh store from newStore for each subtest.
func RunConformance(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create first record", func(t *testing.T) {
		s := newStore(t)
		rec := NewRecord(t, addr, base)
		require.NoError(t, s.CreateSuperseding(ctx, rec, nil))

		current, err := s.Current(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, current.ID)
		assert.Equal(t, models.StatusPending, current.Status)
		assert.Equal(t, rec.Scheme, current.Scheme)
		assert.Equal(t, "alice.eth", current.Identifier.Name)
		require.NotNil(t, current.LivenessScore)
		assert.InDelta(t, 0.93, *current.LivenessScore, 1e-9)

		byLock, err := s.FindByUnlockRequest(ctx, rec.TimeLock.RequestID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, byLock.ID)
	})

	t.Run("missing records", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Current(ctx, addr)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = s.FindByID(ctx, id.NewRecordID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = s.FindByUnlockRequest(ctx, id.NewUnlockRequestID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = s.Execute(ctx, id.NewRecordID(), func(*models.Record) error { return nil }, func(*models.Record) {})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("supersede retains prior record", func(t *testing.T) {
		s := newStore(t)
		first := NewRecord(t, addr, base)
		require.NoError(t, s.CreateSuperseding(ctx, first, nil))
		_, err := s.Execute(ctx, first.ID, func(r *models.Record) error { return r.CanApprove() }, func(r *models.Record) {
			r.ApplyApproval(base, time.Hour)
		})
		require.NoError(t, err)

		second := NewRecord(t, addr, base.Add(time.Minute))
		require.NoError(t, s.CreateSuperseding(ctx, second, &first.ID))

		current, err := s.Current(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, second.ID, current.ID)

		prior, err := s.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, prior.Superseded)
		require.NotNil(t, prior.SupersededBy)
		assert.Equal(t, second.ID, *prior.SupersededBy)
		assert.Equal(t, models.StatusExpired, prior.Status)

		history, err := s.ListByAddress(ctx, addr)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, second.ID, history[0].ID, "newest first")
	})

	t.Run("history orders equal timestamps by insertion", func(t *testing.T) {
		s := newStore(t)
		first := NewRecord(t, addr, base)
		require.NoError(t, s.CreateSuperseding(ctx, first, nil))
		second := NewRecord(t, addr, base)
		require.NoError(t, s.CreateSuperseding(ctx, second, &first.ID))
		third := NewRecord(t, addr, base)
		require.NoError(t, s.CreateSuperseding(ctx, third, &second.ID))

		for range 5 {
			history, err := s.ListByAddress(ctx, addr)
			require.NoError(t, err)
			require.Len(t, history, 3)
			assert.Equal(t, third.ID, history[0].ID)
			assert.Equal(t, second.ID, history[1].ID)
			assert.Equal(t, first.ID, history[2].ID)
		}
	})

	t.Run("stale expectation conflicts", func(t *testing.T) {
		s := newStore(t)
		first := NewRecord(t, addr, base)
		require.NoError(t, s.CreateSuperseding(ctx, first, nil))

		err := s.CreateSuperseding(ctx, NewRecord(t, addr, base.Add(time.Minute)), nil)
		assert.ErrorIs(t, err, sentinel.ErrConflict)

		other := id.NewRecordID()
		err = s.CreateSuperseding(ctx, NewRecord(t, addr, base.Add(time.Minute)), &other)
		assert.ErrorIs(t, err, sentinel.ErrConflict)

		current, err := s.Current(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, first.ID, current.ID)
	})

	t.Run("execute validation failure leaves record untouched", func(t *testing.T) {
		s := newStore(t)
		rec := NewRecord(t, addr, base)
		require.NoError(t, s.CreateSuperseding(ctx, rec, nil))
		_, err := s.Execute(ctx, rec.ID, func(r *models.Record) error { return r.CanReject() }, func(r *models.Record) { r.ApplyRejection(base, "blurry") })
		require.NoError(t, err)

		_, err = s.Execute(ctx, rec.ID,
			func(r *models.Record) error { return r.CanApprove() },
			func(r *models.Record) { r.ApplyApproval(base, time.Hour) })
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		got, err := s.FindByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRejected, got.Status)
		assert.Equal(t, "blurry", got.RejectionReason)
		assert.Nil(t, got.ExpiryDate)
	})

	t.Run("time-lock release persists", func(t *testing.T) {
		s := newStore(t)
		rec := NewRecord(t, addr, base)
		require.NoError(t, s.CreateSuperseding(ctx, rec, nil))

		updated, err := s.Execute(ctx, rec.ID, func(*models.Record) error { return nil }, func(r *models.Record) {
			r.ApplyDecrypted(base.Add(time.Hour))
		})
		require.NoError(t, err)
		assert.True(t, updated.TimeLock.Decrypted)

		got, err := s.FindByUnlockRequest(ctx, rec.TimeLock.RequestID)
		require.NoError(t, err)
		assert.True(t, got.TimeLock.Decrypted)
		require.NotNil(t, got.TimeLock.DecryptedAt)
		assert.True(t, base.Add(time.Hour).Equal(*got.TimeLock.DecryptedAt))
	})

	t.Run("concurrent approve and reject apply exactly one", func(t *testing.T) {
		s := newStore(t)
		rec := NewRecord(t, addr, base)
		require.NoError(t, s.CreateSuperseding(ctx, rec, nil))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				var err error
				if i%2 == 0 {
					_, err = s.Execute(ctx, rec.ID, func(r *models.Record) error { return r.CanApprove() },
						func(r *models.Record) { r.ApplyApproval(base, time.Hour) })
				} else {
					_, err = s.Execute(ctx, rec.ID, func(r *models.Record) error { return r.CanReject() },
						func(r *models.Record) { r.ApplyRejection(base, "no") })
				}
				if err == nil {
					wins.Add(1)
				} else if !dErrors.HasCode(err, dErrors.CodeInvalidTransition) && !errors.Is(err, sentinel.ErrConflict) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("concurrent resubmissions create exactly one record", func(t *testing.T) {
		s := newStore(t)
		candidates := make([]*models.Record, 10)
		for i := range candidates {
			candidates[i] = NewRecord(t, addr, base)
		}
		var wins atomic.Int32
		var wg sync.WaitGroup
		for _, rec := range candidates {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.CreateSuperseding(ctx, rec, nil); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}
