package models

import (
	"slices"
	"time"

	identity "unikyc/internal/identity/models"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
)

// Status is the stored verification status of a record. StatusNone is never
// stored; it describes an identifier without a record.
type Status string

const (
	StatusNone     Status = "none"
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusRejected Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusExpired, StatusRejected:
		return true
	}
	return false
}

// Scheme records how the payload was split. ShareDigests are base58
// multihashes, one per share, in share-index order.
type Scheme struct {
	TotalShares    int      `json:"total_shares"`
	RequiredShares int      `json:"required_shares"`
	ShareDigests   []string `json:"share_digests"`
}

// TimeLock links a record to its unlock request on the conditional-encryption network.
type TimeLock struct {
	UnlockBlockHeight uint64             `json:"unlock_block_height"`
	RequestID         id.UnlockRequestID `json:"request_id"`
	Decrypted         bool               `json:"decrypted"`
	DecryptedAt       *time.Time         `json:"decrypted_at,omitempty"`
}

// Record is one verification attempt for an address. At most one record per
// address is current; earlier ones are kept and marked superseded.
type Record struct {
	ID                  id.RecordID                  `json:"id"`
	Identifier          identity.CanonicalIdentifier `json:"identifier"`
	Status              Status                       `json:"status"`
	CreatedAt           time.Time                    `json:"created_at"`
	UpdatedAt           time.Time                    `json:"updated_at"`
	LastVerifiedAt      *time.Time                   `json:"last_verified_at,omitempty"`
	ExpiryDate          *time.Time                   `json:"expiry_date,omitempty"`
	Scheme              Scheme                       `json:"scheme"`
	EncryptedPayloadRef string                       `json:"encrypted_payload_ref"`
	TimeLock            *TimeLock                    `json:"time_lock,omitempty"`
	Superseded          bool                         `json:"superseded"`
	SupersededBy        *id.RecordID                 `json:"superseded_by,omitempty"`
	LivenessScore       *float64                     `json:"liveness_score,omitempty"`
	RejectionReason     string                       `json:"rejection_reason,omitempty"`
}

// NewPendingRecord builds a fresh pending record. A record is only ever
// created with a registered time-lock.
func NewPendingRecord(identifier identity.CanonicalIdentifier, scheme Scheme, payloadRef string, lock TimeLock, liveness *float64, now time.Time) (*Record, error) {
	if identifier.Address.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record requires an address")
	}
	if payloadRef == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record requires an encrypted payload reference")
	}
	if lock.RequestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record requires a registered time-lock")
	}
	if len(scheme.ShareDigests) != scheme.TotalShares {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "one share digest is required per share")
	}
	return &Record{
		ID:                  id.NewRecordID(),
		Identifier:          identifier,
		Status:              StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
		Scheme:              scheme,
		EncryptedPayloadRef: payloadRef,
		TimeLock:            &lock,
		LivenessScore:       liveness,
	}, nil
}

// EffectiveStatus evaluates a record at now. A nil record is StatusNone; an
// active record past its expiry date is expired whatever the stored status says.
func EffectiveStatus(r *Record, now time.Time) Status {
	if r == nil {
		return StatusNone
	}
	if r.Status == StatusActive && r.ExpiryDate != nil && now.After(*r.ExpiryDate) {
		return StatusExpired
	}
	return r.Status
}

// CanResubmit reports whether a new submission may replace a record in the
// given effective status.
func CanResubmit(current Status) error {
	switch current {
	case StatusNone, StatusActive, StatusExpired, StatusRejected:
		return nil
	case StatusPending:
		return dErrors.New(dErrors.CodeInvalidTransition, "a verification is already pending")
	}
	return dErrors.New(dErrors.CodeInvalidTransition, "unknown status "+string(current))
}

func (r *Record) requirePending(action string) error {
	if r.Superseded {
		return dErrors.New(dErrors.CodeInvalidTransition, "cannot "+action+" a superseded record")
	}
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvalidTransition, "cannot "+action+" a record that is "+string(r.Status))
	}
	return nil
}

// CanApprove checks the pending → active transition.
func (r *Record) CanApprove() error { return r.requirePending("approve") }

// CanReject checks the pending → rejected transition.
func (r *Record) CanReject() error { return r.requirePending("reject") }

// ApplyApproval activates the record for validity starting at now.
func (r *Record) ApplyApproval(now time.Time, validity time.Duration) {
	expiry := now.Add(validity)
	r.Status = StatusActive
	r.LastVerifiedAt = &now
	r.ExpiryDate = &expiry
	r.UpdatedAt = now
}

func (r *Record) ApplyRejection(now time.Time, reason string) {
	r.Status = StatusRejected
	r.RejectionReason = reason
	r.UpdatedAt = now
}

// ApplyExpiry stores the lazily derived expired status. Reports whether anything changed.
func (r *Record) ApplyExpiry(now time.Time) bool {
	if r.Status != StatusActive || EffectiveStatus(r, now) != StatusExpired {
		return false
	}
	r.Status = StatusExpired
	r.UpdatedAt = now
	return true
}

// ApplySupersede retires the record in favour of next. Approved records are
// stored as expired; rejected ones stay rejected.
func (r *Record) ApplySupersede(next id.RecordID, now time.Time) {
	r.Superseded = true
	r.SupersededBy = &next
	if r.Status == StatusActive {
		r.Status = StatusExpired
	}
	r.UpdatedAt = now
}

// ApplyDecrypted marks the time-lock released. Reports whether anything changed.
func (r *Record) ApplyDecrypted(now time.Time) bool {
	if r.TimeLock == nil || r.TimeLock.Decrypted {
		return false
	}
	r.TimeLock.Decrypted = true
	r.TimeLock.DecryptedAt = &now
	r.UpdatedAt = now
	return true
}

// CanRelease checks whether decrypted data may be handed out at now: only
// active or expired records whose time-lock has been released qualify.
func (r *Record) CanRelease(now time.Time) error {
	switch EffectiveStatus(r, now) {
	case StatusActive, StatusExpired:
	default:
		return dErrors.New(dErrors.CodeNotDecryptable, "record has not been approved")
	}
	if r.TimeLock == nil || !r.TimeLock.Decrypted {
		return dErrors.New(dErrors.CodeNotDecryptable, "time-lock has not been released")
	}
	return nil
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.Scheme.ShareDigests = slices.Clone(r.Scheme.ShareDigests)
	if r.LastVerifiedAt != nil {
		t := *r.LastVerifiedAt
		c.LastVerifiedAt = &t
	}
	if r.ExpiryDate != nil {
		t := *r.ExpiryDate
		c.ExpiryDate = &t
	}
	if r.TimeLock != nil {
		tl := *r.TimeLock
		if tl.DecryptedAt != nil {
			t := *tl.DecryptedAt
			tl.DecryptedAt = &t
		}
		c.TimeLock = &tl
	}
	if r.SupersededBy != nil {
		s := *r.SupersededBy
		c.SupersededBy = &s
	}
	if r.LivenessScore != nil {
		v := *r.LivenessScore
		c.LivenessScore = &v
	}
	return &c
}
