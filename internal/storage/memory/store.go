package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/ipfs/go-cid"

	"unikyc/internal/storage"
	"unikyc/pkg/platform/sentinel"
)

// Store is an in-process content store for development and tests.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

func (s *Store) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := storage.ComputeCID(data)
	if err != nil {
		return cid.Undef, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id.KeyString()]; !ok {
		s.objects[id.KeyString()] = bytes.Clone(data)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[id.KeyString()]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return bytes.Clone(data), nil
}

func (s *Store) Has(_ context.Context, id cid.Cid) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[id.KeyString()]
	return ok, nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
