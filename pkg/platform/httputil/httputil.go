package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "unikyc/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders a coded error. Internal errors never leak their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
	}
	if dErrors.IsRetryable(err) {
		w.Header().Set("Retry-After", "5")
	}
	WriteJSON(w, StatusFor(code), resp)
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput,
		dErrors.CodeInvalidScheme, dErrors.CodeInvalidUnlockHeight, dErrors.CodeInvalidUnlockMaterial:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeNotDecryptable:
		return http.StatusForbidden
	case dErrors.CodeNotFound, dErrors.CodeResolutionNotFound, dErrors.CodeUnknownRequest:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvalidTransition, dErrors.CodeResolutionAmbiguous:
		return http.StatusConflict
	case dErrors.CodeInsufficientShares, dErrors.CodeCorruptShare:
		return http.StatusUnprocessableEntity
	case dErrors.CodeStorageUnavailable, dErrors.CodeRegistrationFailed, dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Preparable requests normalize and validate themselves after decoding.
type Preparable interface {
	Normalize()
	Validate() error
}

// DecodeAndPrepare decodes a bounded JSON body into req, then normalizes and validates it.
func DecodeAndPrepare[T Preparable](r *http.Request, req T) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	req.Normalize()
	return req.Validate()
}
