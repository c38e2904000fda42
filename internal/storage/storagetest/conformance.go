// Package storagetest holds the conformance suite every ContentStore must pass.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"unikyc/internal/storage"
	"unikyc/pkg/platform/sentinel"
)

// NewStore constructs a fresh, empty store isolated from other tests.
type NewStore func(t *testing.T) storage.ContentStore

func RunConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte("sealed kyc payload")

		id, err := s.Put(ctx, want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := storage.ComputeCID(want)
		if err != nil {
			t.Fatalf("ComputeCID failed: %v", err)
		}
		if !id.Equals(wantID) {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}

		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := []byte("same bytes")
		id1, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if !id1.Equals(id2) {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		id, err := storage.ComputeCID([]byte("missing"))
		if err != nil {
			t.Fatalf("ComputeCID failed: %v", err)
		}
		has, err := s.Has(ctx, id)
		if err != nil {
			t.Fatalf("Has failed: %v", err)
		}
		if has {
			t.Fatalf("Has returned true for missing CID")
		}
		if _, err := s.Get(ctx, id); !errors.Is(err, sentinel.ErrNotFound) {
			t.Fatalf("Get missing: expected ErrNotFound, got %v", err)
		}

		if _, err := s.Put(ctx, []byte("missing")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		has, err = s.Has(ctx, id)
		if err != nil || !has {
			t.Fatalf("Has after Put: got %v, %v", has, err)
		}
	})

	t.Run("ReturnedBytesAreCopies", func(t *testing.T) {
		s := newStore(t)
		id, err := s.Put(ctx, []byte("immutable"))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		got[0] = 'X'
		again, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(again) != "immutable" {
			t.Fatalf("stored object was mutated through a returned slice")
		}
	})
}
