package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"unikyc/internal/kyc/models"
	tlmodels "unikyc/internal/timelock/models"
	id "unikyc/pkg/domain"
	"unikyc/pkg/platform/sentinel"
	"unikyc/pkg/requestcontext"
)

// HandleUnlockCallback validates an unlock notification with the coordinator
// and marks the owning record's time-lock released. Duplicate notifications
// re-apply the mark, so a delivery that failed after the coordinator accepted
// it is repaired by the next one. Nothing is decrypted here.
func (s *Service) HandleUnlockCallback(ctx context.Context, requestID id.UnlockRequestID, material []byte) (err error) {
	ctx, span := s.startSpan(ctx, "HandleUnlockCallback", attribute.String("kyc.unlock_request_id", requestID.String()))
	defer func() { endSpan(span, err) }()

	outcome, err := s.coordinator.OnUnlockCallback(ctx, requestID, material)
	if err != nil {
		s.observeCallback("rejected")
		return err
	}
	span.SetAttributes(attribute.String("kyc.callback_outcome", string(outcome)))

	rec, err := s.store.FindByUnlockRequest(ctx, requestID)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Either the submission is still between registration and its final
		// write, in which case it reconciles once the record exists, or it
		// failed after registering.
		s.observeCallback("recordless")
		s.logger.WarnContext(ctx, "unlock callback for request without a record",
			"log_type", "integrity",
			"unlock_request_id", requestID,
			"outcome", outcome,
		)
		return nil
	}
	if err != nil {
		return storeError(err, "failed to load kyc record for unlock request")
	}

	_, changed, err := s.markDecrypted(ctx, rec.ID)
	if err != nil {
		return err
	}
	switch {
	case changed:
		s.observeCallback(string(tlmodels.OutcomeDecrypted))
		s.logger.InfoContext(ctx, "kyc time-lock released",
			"record_id", rec.ID,
			"unlock_request_id", requestID,
		)
	default:
		s.observeCallback(string(tlmodels.OutcomeDuplicate))
	}
	return nil
}

func (s *Service) markDecrypted(ctx context.Context, recordID id.RecordID) (*models.Record, bool, error) {
	now := requestcontext.Now(ctx)
	changed := false
	rec, err := s.store.Execute(ctx, recordID,
		func(*models.Record) error { return nil },
		func(r *models.Record) { changed = r.ApplyDecrypted(now) },
	)
	if err != nil {
		return nil, false, storeError(err, "failed to mark time-lock released")
	}
	return rec, changed, nil
}

// reconcileTimeLock copies a release the coordinator already accepted onto a
// record that missed its callback. Failures are logged and leave rec as is.
func (s *Service) reconcileTimeLock(ctx context.Context, rec *models.Record) *models.Record {
	if rec.TimeLock == nil || rec.TimeLock.Decrypted {
		return rec
	}
	state, err := s.coordinator.QueryUnlockState(ctx, rec.TimeLock.RequestID)
	if err != nil {
		s.logger.WarnContext(ctx, "time-lock state unavailable for reconciliation",
			"record_id", rec.ID,
			"unlock_request_id", rec.TimeLock.RequestID,
			"error", err,
		)
		return rec
	}
	if state.State != tlmodels.StateDecrypted {
		return rec
	}
	updated, changed, err := s.markDecrypted(ctx, rec.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to reconcile released time-lock",
			"record_id", rec.ID,
			"unlock_request_id", rec.TimeLock.RequestID,
			"error", err,
		)
		return rec
	}
	if changed {
		s.observeCallback("reconciled")
		s.logger.InfoContext(ctx, "kyc time-lock release reconciled",
			"record_id", rec.ID,
			"unlock_request_id", rec.TimeLock.RequestID,
		)
	}
	return updated
}

func (s *Service) observeCallback(outcome string) {
	if s.metrics != nil {
		s.metrics.IncUnlockCallback(outcome)
	}
}
