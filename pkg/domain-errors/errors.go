// Package domainerrors provides coded errors shared by services and transports.
//
// Services translate infrastructure facts (see pkg/platform/sentinel) into a
// Code so outer layers can render stable messaging without inspecting text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "service_unavailable"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"

	// Identifier resolution
	CodeResolutionNotFound  Code = "resolution_not_found"
	CodeResolutionAmbiguous Code = "resolution_ambiguous"

	// Threshold cipher
	CodeInvalidScheme      Code = "cipher_invalid_scheme"
	CodeInsufficientShares Code = "cipher_insufficient_shares"
	CodeCorruptShare       Code = "cipher_corrupt_share"

	// Time-lock coordination
	CodeInvalidUnlockHeight   Code = "timelock_invalid_unlock_height"
	CodeRegistrationFailed    Code = "timelock_registration_failed"
	CodeUnknownRequest        Code = "timelock_unknown_request"
	CodeInvalidUnlockMaterial Code = "timelock_invalid_material"

	// Record lifecycle
	CodeStorageUnavailable Code = "storage_unavailable"
	CodeInvalidTransition  Code = "invalid_transition"
	CodeNotDecryptable     Code = "not_decryptable"
)

// retryable codes are transient faults the caller may retry with backoff.
var retryable = map[Code]bool{
	CodeStorageUnavailable: true,
	CodeRegistrationFailed: true,
	CodeTimeout:            true,
	CodeUnavailable:        true,
}

// Error carries a Code, a caller-safe message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any coded error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsRetryable reports whether the outermost code marks a transient fault.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return retryable[CodeOf(err)]
}
