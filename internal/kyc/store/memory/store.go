package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"unikyc/internal/kyc/models"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	"unikyc/pkg/platform/sentinel"
)

// Mutations for one address are linearized on a shard mutex chosen by FNV-1a
// of the address. The maps themselves sit behind a RWMutex that is held only
// for the copy in or out, so readers never wait on a validate or mutate callback.
const numShards = 64

const defaultTxTimeout = 5 * time.Second

type Store struct {
	shards [numShards]sync.Mutex

	mu        sync.RWMutex
	records   map[id.RecordID]*models.Record
	current   map[id.Address]id.RecordID
	byRequest map[id.UnlockRequestID]id.RecordID
	// seq orders records created within the same instant.
	seq     map[id.RecordID]uint64
	nextSeq uint64
}

func New() *Store {
	return &Store{
		records:   make(map[id.RecordID]*models.Record),
		current:   make(map[id.Address]id.RecordID),
		byRequest: make(map[id.UnlockRequestID]id.RecordID),
		seq:       make(map[id.RecordID]uint64),
	}
}

func (s *Store) Current(_ context.Context, addr id.Address) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recordID, ok := s.current[addr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.records[recordID].Clone(), nil
}

func (s *Store) FindByID(_ context.Context, recordID id.RecordID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) FindByUnlockRequest(_ context.Context, requestID id.UnlockRequestID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recordID, ok := s.byRequest[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.records[recordID].Clone(), nil
}

// ListByAddress returns every record for addr, superseded ones included, newest first.
func (s *Store) ListByAddress(_ context.Context, addr id.Address) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for _, r := range s.records {
		if r.Identifier.Address == addr {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(s.seq[b.ID], s.seq[a.ID])
	})
	return out, nil
}

// CreateSuperseding stores rec as the current record for its address and
// retires expectedCurrent. If the current record is not expectedCurrent
// (nil meaning "none"), nothing is written and sentinel.ErrConflict is returned.
func (s *Store) CreateSuperseding(ctx context.Context, rec *models.Record, expectedCurrent *id.RecordID) error {
	addr := rec.Identifier.Address
	return s.withShard(ctx, addr, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, exists := s.records[rec.ID]; exists {
			return sentinel.ErrConflict
		}
		currentID, hasCurrent := s.current[addr]
		switch {
		case expectedCurrent == nil && hasCurrent:
			return sentinel.ErrConflict
		case expectedCurrent != nil && (!hasCurrent || currentID != *expectedCurrent):
			return sentinel.ErrConflict
		}

		if hasCurrent {
			prior := s.records[currentID].Clone()
			prior.ApplySupersede(rec.ID, rec.CreatedAt)
			s.records[currentID] = prior
		}
		stored := rec.Clone()
		s.records[stored.ID] = stored
		s.nextSeq++
		s.seq[stored.ID] = s.nextSeq
		s.current[addr] = stored.ID
		if stored.TimeLock != nil {
			s.byRequest[stored.TimeLock.RequestID] = stored.ID
		}
		return nil
	})
}

// Execute validates and mutates one record. Validation failures and context
// cancellation leave the record untouched.
func (s *Store) Execute(ctx context.Context, recordID id.RecordID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	s.mu.RLock()
	existing, ok := s.records[recordID]
	var addr id.Address
	if ok {
		addr = existing.Identifier.Address
	}
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	var result *models.Record
	err := s.withShard(ctx, addr, func() error {
		s.mu.RLock()
		working := s.records[recordID].Clone()
		s.mu.RUnlock()

		if err := validate(working); err != nil {
			return err
		}
		mutate(working)

		s.mu.Lock()
		s.records[recordID] = working
		s.mu.Unlock()
		result = working.Clone()
		return nil
	})
	return result, err
}

func (s *Store) withShard(ctx context.Context, addr id.Address, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	shard := &s.shards[hashAddress(addr)%numShards]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn()
}

// hashAddress is FNV-1a.
func hashAddress(addr id.Address) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(addr); i++ {
		h ^= uint32(addr[i])
		h *= fnvPrime
	}
	return h
}
