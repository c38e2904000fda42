package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"unikyc/internal/kyc/models"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
	"unikyc/pkg/platform/audit"
	"unikyc/pkg/requestcontext"
)

const maxReasonLength = 500

// Approve activates a pending record for the configured validity period.
func (s *Service) Approve(ctx context.Context, recordID id.RecordID) (rec *models.Record, err error) {
	ctx, span := s.startSpan(ctx, "Approve", attribute.String("kyc.record_id", recordID.String()))
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	rec, err = s.store.Execute(ctx, recordID,
		func(r *models.Record) error { return r.CanApprove() },
		func(r *models.Record) { r.ApplyApproval(now, s.validity) },
	)
	if err != nil {
		return nil, storeError(err, "failed to approve kyc record")
	}

	s.observeTransition(models.StatusPending, models.StatusActive)
	s.logger.InfoContext(ctx, "kyc approved",
		"record_id", rec.ID,
		"address", rec.Identifier.Address,
		"expiry_date", rec.ExpiryDate,
	)
	s.recordDecision(ctx, audit.EventKycApproved, rec, "approved", "")
	return rec, nil
}

// Reject closes a pending record. The identifier may resubmit afterwards.
func (s *Service) Reject(ctx context.Context, recordID id.RecordID, reason string) (rec *models.Record, err error) {
	ctx, span := s.startSpan(ctx, "Reject", attribute.String("kyc.record_id", recordID.String()))
	defer func() { endSpan(span, err) }()

	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLength {
		return nil, dErrors.New(dErrors.CodeValidation, "reason is too long")
	}

	now := requestcontext.Now(ctx)
	rec, err = s.store.Execute(ctx, recordID,
		func(r *models.Record) error { return r.CanReject() },
		func(r *models.Record) { r.ApplyRejection(now, reason) },
	)
	if err != nil {
		return nil, storeError(err, "failed to reject kyc record")
	}

	s.observeTransition(models.StatusPending, models.StatusRejected)
	s.logger.InfoContext(ctx, "kyc rejected",
		"record_id", rec.ID,
		"address", rec.Identifier.Address,
		"reason", reason,
	)
	s.recordDecision(ctx, audit.EventKycRejected, rec, "rejected", reason)
	return rec, nil
}

// recordDecision emits the compliance event for an operator decision. The
// transition is already committed, so a failed emit is logged, not returned.
func (s *Service) recordDecision(ctx context.Context, action audit.AuditEvent, rec *models.Record, decision, reason string) {
	if s.compliance == nil {
		return
	}
	event := s.event(ctx, action, rec, reason)
	event.Decision = decision
	if err := s.compliance.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record operator decision",
			"log_type", "compliance",
			"record_id", rec.ID,
			"action", action,
			"error", err,
		)
	}
}
