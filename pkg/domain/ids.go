package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "unikyc/pkg/domain-errors"
)

// Typed identifiers. Parse at trust boundaries; direct casting bypasses validation.
type (
	RecordID        uuid.UUID
	UnlockRequestID uuid.UUID
)

// NewRecordID returns a fresh random record identifier.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// NewUnlockRequestID returns a fresh random time-lock request identifier.
func NewUnlockRequestID() UnlockRequestID { return UnlockRequestID(uuid.New()) }

func (id RecordID) String() string        { return uuid.UUID(id).String() }
func (id RecordID) IsNil() bool           { return uuid.UUID(id) == uuid.Nil }
func (id UnlockRequestID) String() string { return uuid.UUID(id).String() }
func (id UnlockRequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// Text encodings keep JSON and Redis payloads human-readable.
func (id RecordID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *RecordID) UnmarshalText(b []byte) error {
	parsed, err := ParseRecordID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id UnlockRequestID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UnlockRequestID) UnmarshalText(b []byte) error {
	parsed, err := ParseUnlockRequestID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseRecordID parses a non-nil UUID into a RecordID.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s, "record ID")
	return RecordID(u), err
}

// ParseUnlockRequestID parses a non-nil UUID into an UnlockRequestID.
func ParseUnlockRequestID(s string) (UnlockRequestID, error) {
	u, err := parseUUID(s, "unlock request ID")
	return UnlockRequestID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

// Address is a canonical account address: "0x" followed by 40 lowercase hex digits.
// Every KYC record is keyed by an Address.
type Address string

const addressHexLen = 40

// ParseAddress canonicalizes s into an Address. Mixed case is accepted and folded.
func ParseAddress(s string) (Address, error) {
	if !LooksLikeAddress(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid address")
	}
	return Address(strings.ToLower(s)), nil
}

// LooksLikeAddress reports whether s matches the address grammar, ignoring case.
func LooksLikeAddress(s string) bool {
	if len(s) != 2+addressHexLen {
		return false
	}
	if s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return false
	}
	for i := 2; i < len(s); i++ {
		if !isHex(s[i]) {
			return false
		}
	}
	return true
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func (a Address) String() string { return string(a) }
func (a Address) IsNil() bool    { return a == "" }
