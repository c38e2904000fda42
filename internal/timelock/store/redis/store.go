// Package redis tracks unlock requests in Redis so every replica sees the same
// registrations and callbacks stay idempotent across restarts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"unikyc/internal/timelock/models"
	id "unikyc/pkg/domain"
	"unikyc/pkg/platform/sentinel"
)

const (
	requestPrefix = "unikyc:tl:req:"
	pendingKey    = "unikyc:tl:pending"
)

type Store struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func requestKey(requestID id.UnlockRequestID) string {
	return requestPrefix + requestID.String()
}

func (s *Store) Save(ctx context.Context, req *models.UnlockRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal unlock request: %w", err)
	}
	created, err := s.client.SetNX(ctx, requestKey(req.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("save unlock request: %w: %w", sentinel.ErrUnavailable, err)
	}
	if !created {
		return sentinel.ErrConflict
	}
	if req.State != models.StateDecrypted {
		if err := s.client.SAdd(ctx, pendingKey, req.ID.String()).Err(); err != nil {
			return fmt.Errorf("index pending request: %w: %w", sentinel.ErrUnavailable, err)
		}
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, requestID id.UnlockRequestID) (*models.UnlockRequest, error) {
	return s.load(ctx, s.client, requestID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) load(ctx context.Context, c getter, requestID id.UnlockRequestID) (*models.UnlockRequest, error) {
	data, err := c.Get(ctx, requestKey(requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load unlock request: %w: %w", sentinel.ErrUnavailable, err)
	}
	var req models.UnlockRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode unlock request: %w", err)
	}
	return &req, nil
}

// Execute runs validate and mutate inside a WATCH transaction on the request
// key. A concurrent writer aborts the transaction with sentinel.ErrConflict.
func (s *Store) Execute(ctx context.Context, requestID id.UnlockRequestID, validate func(*models.UnlockRequest) error, mutate func(*models.UnlockRequest)) (*models.UnlockRequest, error) {
	key := requestKey(requestID)
	var result *models.UnlockRequest
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		req, err := s.load(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := validate(req); err != nil {
			return err
		}
		mutate(req)
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal unlock request: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if req.State == models.StateDecrypted {
				pipe.SRem(ctx, pendingKey, requestID.String())
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = req
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, fmt.Errorf("unlock request modified concurrently: %w", sentinel.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListPending returns requests not yet decrypted, oldest first. Index entries
// whose request has vanished are skipped.
func (s *Store) ListPending(ctx context.Context) ([]*models.UnlockRequest, error) {
	members, err := s.client.SMembers(ctx, pendingKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w: %w", sentinel.ErrUnavailable, err)
	}
	out := make([]*models.UnlockRequest, 0, len(members))
	for _, member := range members {
		requestID, err := id.ParseUnlockRequestID(member)
		if err != nil {
			continue
		}
		req, err := s.FindByID(ctx, requestID)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if req.State != models.StateDecrypted {
			out = append(out, req)
		}
	}
	slices.SortFunc(out, func(a, b *models.UnlockRequest) int {
		return a.RegisteredAt.Compare(b.RegisteredAt)
	})
	return out, nil
}
