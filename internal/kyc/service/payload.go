package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"unikyc/internal/cipher"
	"unikyc/internal/kyc/models"
	"unikyc/internal/storage"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	"unikyc/pkg/platform/audit"
	"unikyc/pkg/platform/sentinel"
	"unikyc/pkg/requestcontext"
)

// ReadPayload opens the record's stored ciphertext with caller-held shares.
// Only an approved record (active or expired) whose time-lock has been
// released can be read. The disclosure is recorded with the compliance
// auditor before the plaintext is returned; if that fails, nothing is returned.
func (s *Service) ReadPayload(ctx context.Context, recordID id.RecordID, shares [][]byte) (payload []byte, err error) {
	ctx, span := s.startSpan(ctx, "ReadPayload", attribute.String("kyc.record_id", recordID.String()))
	defer func() {
		endSpan(span, err)
		if s.metrics != nil {
			outcome := "released"
			if err != nil {
				outcome = string(dErrors.CodeOf(err))
			}
			s.metrics.IncPayloadRead(outcome)
		}
	}()

	rec, err := s.store.FindByID(ctx, recordID)
	if err != nil {
		return nil, storeError(err, "failed to load kyc record")
	}
	if err := requireOwner(ctx, rec.Identifier.Address); err != nil {
		return nil, err
	}
	rec = s.reconcileTimeLock(ctx, rec)
	if err := rec.CanRelease(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if len(shares) < rec.Scheme.RequiredShares {
		return nil, dErrors.New(dErrors.CodeInsufficientShares, "fewer shares than the scheme requires")
	}

	digests, err := cipher.ParseDigests(rec.Scheme.ShareDigests)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored share digests are invalid")
	}
	threshold := cipher.ThresholdScheme{
		Scheme:       cipher.Scheme{TotalShares: rec.Scheme.TotalShares, RequiredShares: rec.Scheme.RequiredShares},
		ShareDigests: digests,
	}

	ciphertext, err := s.loadCiphertext(ctx, rec)
	if err != nil {
		return nil, err
	}

	cipherStart := time.Now()
	payload, err = s.cipher.Decrypt(ciphertext, shares, threshold)
	if s.metrics != nil {
		s.metrics.ObserveCipher("decrypt", time.Since(cipherStart).Seconds())
	}
	if err != nil {
		s.logger.WarnContext(ctx, "payload read rejected",
			"record_id", rec.ID,
			"error", err,
		)
		return nil, err
	}

	if s.compliance != nil {
		event := s.event(ctx, audit.EventPayloadRead, rec, "")
		event.Decision = "released"
		if err := s.compliance.Emit(ctx, event); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record payload disclosure")
		}
	}
	s.logger.InfoContext(ctx, "kyc payload released",
		"record_id", rec.ID,
		"address", rec.Identifier.Address,
		"shares", len(shares),
	)
	return payload, nil
}

// loadCiphertext fetches the sealed payload the record references. A missing
// or mismatched object is a data-integrity fault, not an outage.
func (s *Service) loadCiphertext(ctx context.Context, rec *models.Record) ([]byte, error) {
	ref, err := storage.ParseCID(rec.EncryptedPayloadRef)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored payload reference is invalid")
	}
	ciphertext, err := s.content.Get(ctx, ref)
	switch {
	case err == nil:
		return ciphertext, nil
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, storage.ErrCIDMismatch):
		s.logger.ErrorContext(ctx, "encrypted payload unavailable for record",
			"log_type", "integrity",
			"record_id", rec.ID,
			"payload_ref", rec.EncryptedPayloadRef,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encrypted payload is missing from the content store")
	case ctx.Err() != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "payload read cancelled")
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to load encrypted payload")
	}
}
