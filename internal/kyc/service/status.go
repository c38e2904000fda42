package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"unikyc/internal/kyc/models"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	"unikyc/pkg/platform/audit"
	"unikyc/pkg/platform/sentinel"
	"unikyc/pkg/requestcontext"
)

// StatusResult is the read contract for outer layers. HasKyc reports whether
// the identifier has a current record at all; Status is evaluated at the
// request time, not merely read back.
type StatusResult struct {
	Address      id.Address     `json:"address"`
	Name         string         `json:"name,omitempty"`
	HasKyc       bool           `json:"has_kyc"`
	Status       models.Status  `json:"status"`
	LastVerified *time.Time     `json:"last_verified,omitempty"`
	ExpiryDate   *time.Time     `json:"expiry_date,omitempty"`
	Record       *models.Record `json:"-"`
}

// CheckStatus resolves identifier and reports its effective status. An active
// record whose expiry has elapsed is reported expired and written back on a
// best-effort basis; a failed write-back does not fail the read.
func (s *Service) CheckStatus(ctx context.Context, identifier string) (result *StatusResult, err error) {
	ctx, span := s.startSpan(ctx, "CheckStatus")
	defer func() { endSpan(span, err) }()

	ident, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("kyc.address", ident.Address.String()))

	rec, err := s.store.Current(ctx, ident.Address)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.observeStatus(models.StatusNone)
		return &StatusResult{Address: ident.Address, Name: ident.Name, Status: models.StatusNone}, nil
	}
	if err != nil {
		return nil, storeError(err, "failed to load kyc record")
	}

	now := requestcontext.Now(ctx)
	effective := models.EffectiveStatus(rec, now)
	if effective != rec.Status {
		rec = s.writeBackExpiry(ctx, rec, now)
	}
	s.observeStatus(effective)

	return &StatusResult{
		Address:      ident.Address,
		Name:         ident.Name,
		HasKyc:       true,
		Status:       effective,
		LastVerified: rec.LastVerifiedAt,
		ExpiryDate:   rec.ExpiryDate,
		Record:       rec,
	}, nil
}

func (s *Service) writeBackExpiry(ctx context.Context, rec *models.Record, now time.Time) *models.Record {
	updated, err := s.store.Execute(ctx, rec.ID,
		func(*models.Record) error { return nil },
		func(r *models.Record) { r.ApplyExpiry(now) },
	)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to persist lazy expiry",
			"record_id", rec.ID,
			"error", err,
		)
		return rec
	}
	if s.metrics != nil {
		s.metrics.IncLazyExpiry()
	}
	s.observeTransition(models.StatusActive, models.StatusExpired)
	s.logger.InfoContext(ctx, "kyc record expired", "record_id", rec.ID, "address", rec.Identifier.Address)
	s.track(ctx, audit.EventKycExpired, updated, "")
	return updated
}

func (s *Service) observeStatus(status models.Status) {
	if s.metrics != nil {
		s.metrics.IncStatusCheck(string(status))
	}
}

// GetRecord returns a record by id with its status evaluated at the request time.
func (s *Service) GetRecord(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	rec, err := s.store.FindByID(ctx, recordID)
	if err != nil {
		return nil, storeError(err, "failed to load kyc record")
	}
	if err := requireOwner(ctx, rec.Identifier.Address); err != nil {
		return nil, err
	}
	rec.Status = models.EffectiveStatus(rec, requestcontext.Now(ctx))
	return rec, nil
}

// History lists every record for identifier, superseded ones included, newest first.
func (s *Service) History(ctx context.Context, identifier string) ([]*models.Record, error) {
	ident, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(ctx, ident.Address); err != nil {
		return nil, err
	}
	records, err := s.store.ListByAddress(ctx, ident.Address)
	if err != nil {
		return nil, storeError(err, "failed to list kyc records")
	}
	now := requestcontext.Now(ctx)
	for _, r := range records {
		r.Status = models.EffectiveStatus(r, now)
	}
	return records, nil
}

// UnlockEstimate describes how far the current record's time-lock is from release.
type UnlockEstimate struct {
	RecordID         id.RecordID        `json:"record_id"`
	RequestID        id.UnlockRequestID `json:"unlock_request_id"`
	CanDecrypt       bool               `json:"can_decrypt"`
	Unlocked         bool               `json:"unlocked"`
	TargetHeight     uint64             `json:"target_height"`
	CurrentHeight    uint64             `json:"current_height"`
	BlocksRemaining  uint64             `json:"blocks_remaining"`
	EstimatedSeconds int64              `json:"estimated_seconds"`
}

// UnlockEstimate reports the time-lock state of identifier's current record.
// CanDecrypt is true only when the record itself would allow a payload read.
func (s *Service) UnlockEstimate(ctx context.Context, identifier string) (*UnlockEstimate, error) {
	ident, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(ctx, ident.Address); err != nil {
		return nil, err
	}
	rec, err := s.store.Current(ctx, ident.Address)
	if err != nil {
		return nil, storeError(err, "failed to load kyc record")
	}
	if rec.TimeLock == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record has no time-lock")
	}
	state, err := s.coordinator.QueryUnlockState(ctx, rec.TimeLock.RequestID)
	if err != nil {
		return nil, err
	}
	return &UnlockEstimate{
		RecordID:         rec.ID,
		RequestID:        rec.TimeLock.RequestID,
		CanDecrypt:       rec.CanRelease(requestcontext.Now(ctx)) == nil,
		Unlocked:         state.Unlocked,
		TargetHeight:     state.TargetHeight,
		CurrentHeight:    state.CurrentHeight,
		BlocksRemaining:  state.BlocksRemaining,
		EstimatedSeconds: state.EstimatedSeconds,
	}, nil
}
