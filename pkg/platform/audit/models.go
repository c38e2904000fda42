package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// Categories drive publisher choice and retention downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance, such as
	// disclosure of a decrypted KYC payload. Persistence is fail-closed.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers integrity anomalies and access violations.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle activity; may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category        EventCategory `json:"category"`
	Timestamp       time.Time     `json:"timestamp"`
	Subject         string        `json:"subject,omitempty"` // canonical account address
	RecordID        string        `json:"record_id,omitempty"`
	UnlockRequestID string        `json:"unlock_request_id,omitempty"`
	Action          string        `json:"action"`
	Decision        string        `json:"decision,omitempty"`
	Reason          string        `json:"reason,omitempty"`
	RequestID       string        `json:"request_id,omitempty"`
	ActorID         string        `json:"actor_id,omitempty"`
	IP              string        `json:"ip,omitempty"`
	Client          string        `json:"client,omitempty"` // see DescribeClient
	Severity        Severity      `json:"severity,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

type AuditEvent string

const (
	// Lifecycle events
	EventKycSubmitted     AuditEvent = "kyc_submitted"
	EventKycApproved      AuditEvent = "kyc_approved"
	EventKycRejected      AuditEvent = "kyc_rejected"
	EventKycExpired       AuditEvent = "kyc_expired"
	EventKycSuperseded    AuditEvent = "kyc_superseded"
	EventKycStatusChecked AuditEvent = "kyc_status_checked"

	// Payload events
	EventPayloadRead AuditEvent = "kyc_payload_read"

	// Time-lock events
	EventTimeLockRegistered AuditEvent = "timelock_registered"
	EventTimeLockDecrypted  AuditEvent = "timelock_decrypted"

	// Integrity events
	EventCallbackUnknown   AuditEvent = "timelock_callback_unknown"
	EventCallbackDuplicate AuditEvent = "timelock_callback_duplicate"
	EventWebhookRejected   AuditEvent = "timelock_webhook_rejected"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventPayloadRead: CategoryCompliance,
	EventKycApproved: CategoryCompliance,
	EventKycRejected: CategoryCompliance,

	EventCallbackUnknown:   CategorySecurity,
	EventCallbackDuplicate: CategorySecurity,
	EventWebhookRejected:   CategorySecurity,

	EventKycSubmitted:       CategoryOperations,
	EventKycExpired:         CategoryOperations,
	EventKycSuperseded:      CategoryOperations,
	EventKycStatusChecked:   CategoryOperations,
	EventTimeLockRegistered: CategoryOperations,
	EventTimeLockDecrypted:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// NewEvent builds an event whose category derives from action.
func NewEvent(action AuditEvent, now time.Time) Event {
	return Event{
		Category:  action.Category(),
		Timestamp: now,
		Action:    string(action),
	}
}
