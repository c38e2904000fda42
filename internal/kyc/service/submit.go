package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"unikyc/internal/cipher"
	"unikyc/internal/kyc/models"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	"unikyc/pkg/platform/audit"
	"unikyc/pkg/platform/sentinel"
	"unikyc/pkg/requestcontext"
)

type SubmitRequest struct {
	Identifier        string
	Payload           []byte
	Scheme            cipher.Scheme
	UnlockBlockHeight uint64
	GasBudget         uint64
	LivenessScore     *float64
}

// SubmitResult carries the new pending record and the N shares. Shares are
// never stored; losing more than N-K of them makes the payload unrecoverable.
type SubmitResult struct {
	Record *models.Record
	Shares [][]byte
}

// SubmitVerification encrypts the payload, stores the ciphertext, registers
// its time-lock and only then persists a pending record that supersedes the
// identifier's current one. A failure before the final write leaves no record.
func (s *Service) SubmitVerification(ctx context.Context, req SubmitRequest) (result *SubmitResult, err error) {
	ctx, span := s.startSpan(ctx, "SubmitVerification",
		attribute.Int64("kyc.unlock_block_height", int64(req.UnlockBlockHeight)))
	start := time.Now()
	defer func() {
		endSpan(span, err)
		if s.metrics != nil {
			s.metrics.ObserveSubmit(time.Since(start).Seconds())
			outcome := "created"
			if err != nil {
				outcome = string(dErrors.CodeOf(err))
			}
			s.metrics.IncSubmission(outcome)
		}
	}()

	if len(req.Payload) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "payload is required")
	}
	if req.UnlockBlockHeight == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unlock_block_height is required")
	}
	if err := s.checkLiveness(req.LivenessScore); err != nil {
		return nil, err
	}
	gas := req.GasBudget
	if gas == 0 {
		gas = s.gasBudget
	}

	// (a) resolve
	ident, err := s.resolver.Resolve(ctx, req.Identifier)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(ctx, ident.Address); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("kyc.address", ident.Address.String()))

	// Resolution errors take precedence over scheme errors.
	scheme := req.Scheme
	if scheme.TotalShares == 0 && scheme.RequiredShares == 0 {
		scheme = s.defaultScheme
	}
	if err := scheme.Validate(); err != nil {
		return nil, err
	}

	// (b) transition pre-check
	now := requestcontext.Now(ctx)
	var expectedCurrent *id.RecordID
	current, err := s.store.Current(ctx, ident.Address)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		current = nil
	case err != nil:
		return nil, storeError(err, "failed to load current kyc record")
	default:
		expectedCurrent = &current.ID
	}
	fromStatus := models.EffectiveStatus(current, now)
	if err := models.CanResubmit(fromStatus); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "submission cancelled")
	}

	// (c) encrypt
	cipherStart := time.Now()
	sealed, err := s.cipher.Encrypt(req.Payload, scheme)
	if s.metrics != nil {
		s.metrics.ObserveCipher("encrypt", time.Since(cipherStart).Seconds())
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "submission cancelled")
	}

	// (d) persist ciphertext
	ref, err := s.content.Put(ctx, sealed.Ciphertext)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to store encrypted payload")
	}
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "submission cancelled")
	}

	// (e) register time-lock
	requestID, err := s.coordinator.RegisterUnlock(ctx, ref.String(), sealed.Ciphertext, req.UnlockBlockHeight, gas)
	if err != nil {
		s.logger.WarnContext(ctx, "kyc submission discarded",
			"address", ident.Address,
			"payload_ref", ref.String(),
			"error", err,
		)
		return nil, err
	}

	// (f) create and supersede
	threshold := sealed.Threshold(scheme)
	rec, err := models.NewPendingRecord(ident,
		models.Scheme{
			TotalShares:    scheme.TotalShares,
			RequiredShares: scheme.RequiredShares,
			ShareDigests:   threshold.DigestStrings(),
		},
		ref.String(),
		models.TimeLock{UnlockBlockHeight: req.UnlockBlockHeight, RequestID: requestID},
		req.LivenessScore,
		now,
	)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateSuperseding(ctx, rec, expectedCurrent); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "current kyc record changed during submission")
		}
		return nil, storeError(err, "failed to persist kyc record")
	}
	rec = s.reconcileTimeLock(ctx, rec)

	s.observeTransition(fromStatus, models.StatusPending)
	s.logger.InfoContext(ctx, "kyc submitted",
		"record_id", rec.ID,
		"address", ident.Address,
		"scheme", scheme.String(),
		"unlock_request_id", requestID,
		"unlock_block_height", req.UnlockBlockHeight,
	)
	s.track(ctx, audit.EventKycSubmitted, rec, "")
	if current != nil {
		s.track(ctx, audit.EventKycSuperseded, current, "superseded by "+rec.ID.String())
	}

	return &SubmitResult{Record: rec, Shares: sealed.Shares}, nil
}

func (s *Service) checkLiveness(score *float64) error {
	if score != nil && (*score < 0 || *score > 1) {
		return dErrors.New(dErrors.CodeValidation, "liveness_score must be between 0 and 1")
	}
	if s.minLiveness <= 0 {
		return nil
	}
	if score == nil {
		return dErrors.New(dErrors.CodeValidation, "liveness_score is required")
	}
	if *score < s.minLiveness {
		return dErrors.New(dErrors.CodeValidation, "liveness score below the required minimum")
	}
	return nil
}
