package memory

import (
	"context"
	"slices"
	"sync"

	"unikyc/internal/timelock/models"
	id "unikyc/pkg/domain"
	"unikyc/pkg/platform/sentinel"
)

// Store tracks unlock requests in process memory.
type Store struct {
	mu       sync.RWMutex
	requests map[id.UnlockRequestID]*models.UnlockRequest
}

func New() *Store {
	return &Store{requests: make(map[id.UnlockRequestID]*models.UnlockRequest)}
}

func (s *Store) Save(_ context.Context, req *models.UnlockRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[req.ID] = clone(req)
	return nil
}

func (s *Store) FindByID(_ context.Context, requestID id.UnlockRequestID) (*models.UnlockRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(req), nil
}

// Execute validates and mutates a request under the store lock. A validation
// error leaves the stored request untouched.
func (s *Store) Execute(ctx context.Context, requestID id.UnlockRequestID, validate func(*models.UnlockRequest) error, mutate func(*models.UnlockRequest)) (*models.UnlockRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := clone(current)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.requests[requestID] = working
	return clone(working), nil
}

// ListPending returns requests not yet decrypted, oldest first.
func (s *Store) ListPending(_ context.Context) ([]*models.UnlockRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.UnlockRequest
	for _, req := range s.requests {
		if req.State != models.StateDecrypted {
			out = append(out, clone(req))
		}
	}
	slices.SortFunc(out, func(a, b *models.UnlockRequest) int {
		return a.RegisteredAt.Compare(b.RegisteredAt)
	})
	return out, nil
}

func clone(req *models.UnlockRequest) *models.UnlockRequest {
	c := *req
	if req.DecryptedAt != nil {
		t := *req.DecryptedAt
		c.DecryptedAt = &t
	}
	return &c
}
