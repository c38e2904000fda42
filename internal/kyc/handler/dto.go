package handler

import (
	"strings"

	"unikyc/internal/cipher"
	"unikyc/internal/kyc/models"
	"unikyc/internal/kyc/service"
	id "unikyc/pkg/domain"
	dErrors "unikyc/pkg/domain-errors"
)

const maxPayloadBytes = 256 << 10

// identifierRequest names an account by address or name. Authenticated
// routes default to the caller's own address.
type identifierRequest struct {
	Identifier string `json:"identifier"`

	subject id.Address
}

func (r *identifierRequest) Normalize() {
	r.Identifier = strings.TrimSpace(r.Identifier)
	if r.Identifier == "" && !r.subject.IsNil() {
		r.Identifier = r.subject.String()
	}
}

func (r *identifierRequest) Validate() error {
	if r.Identifier == "" {
		return dErrors.New(dErrors.CodeBadRequest, "identifier is required")
	}
	return nil
}

type submitRequest struct {
	Identifier        string   `json:"identifier"`
	Payload           []byte   `json:"payload"` // base64
	TotalShares       int      `json:"total_shares"`
	RequiredShares    int      `json:"required_shares"`
	UnlockBlockHeight uint64   `json:"unlock_block_height"`
	GasBudget         uint64   `json:"gas_budget"`
	LivenessScore     *float64 `json:"liveness_score"`

	subject id.Address
}

func (r *submitRequest) Normalize() {
	r.Identifier = strings.TrimSpace(r.Identifier)
	if r.Identifier == "" && !r.subject.IsNil() {
		r.Identifier = r.subject.String()
	}
}

func (r *submitRequest) Validate() error {
	switch {
	case r.Identifier == "":
		return dErrors.New(dErrors.CodeBadRequest, "identifier is required")
	case len(r.Payload) == 0:
		return dErrors.New(dErrors.CodeBadRequest, "payload is required")
	case len(r.Payload) > maxPayloadBytes:
		return dErrors.New(dErrors.CodeValidation, "payload is too large")
	case r.UnlockBlockHeight == 0:
		return dErrors.New(dErrors.CodeBadRequest, "unlock_block_height is required")
	}
	return nil
}

func (r *submitRequest) toService() service.SubmitRequest {
	return service.SubmitRequest{
		Identifier:        r.Identifier,
		Payload:           r.Payload,
		Scheme:            cipher.Scheme{TotalShares: r.TotalShares, RequiredShares: r.RequiredShares},
		UnlockBlockHeight: r.UnlockBlockHeight,
		GasBudget:         r.GasBudget,
		LivenessScore:     r.LivenessScore,
	}
}

type payloadRequest struct {
	Shares [][]byte `json:"shares"` // base64

	shares [][]byte
}

func (r *payloadRequest) Normalize() {
	r.shares = r.shares[:0]
	for _, s := range r.Shares {
		if len(s) > 0 {
			r.shares = append(r.shares, s)
		}
	}
}

func (r *payloadRequest) Validate() error {
	if len(r.shares) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "shares are required")
	}
	if len(r.shares) > cipher.MaxShares {
		return dErrors.New(dErrors.CodeBadRequest, "too many shares")
	}
	return nil
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (r *rejectRequest) Normalize() { r.Reason = strings.TrimSpace(r.Reason) }

func (r *rejectRequest) Validate() error {
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeBadRequest, "reason is required")
	}
	return nil
}

type submitResponse struct {
	Record *models.Record `json:"record"`
	Shares [][]byte       `json:"shares"`
}

type historyResponse struct {
	Records []*models.Record `json:"records"`
}

type payloadResponse struct {
	RecordID string `json:"record_id"`
	Payload  []byte `json:"payload"`
}
