package models

import (
	"time"

	id "unikyc/pkg/domain"
)

// RequestState tracks an unlock request on the conditional-encryption network.
// Only Registered and Decrypted are stored; Unlockable is derived from the
// observed chain height.
type RequestState string

const (
	StateRegistered RequestState = "registered"
	StateUnlockable RequestState = "unlockable"
	StateDecrypted  RequestState = "decrypted"
)

// UnlockRequest is the coordinator's record of one registration.
type UnlockRequest struct {
	ID                id.UnlockRequestID `json:"id"`
	CiphertextRef     string             `json:"ciphertext_ref"`
	UnlockBlockHeight uint64             `json:"unlock_block_height"`
	GasBudget         uint64             `json:"gas_budget"`
	State             RequestState       `json:"state"`
	RegisteredAt      time.Time          `json:"registered_at"`
	DecryptedAt       *time.Time         `json:"decrypted_at,omitempty"`
	MaterialDigest    string             `json:"material_digest,omitempty"`
}

// EffectiveState derives the request state at the given chain height.
func (r *UnlockRequest) EffectiveState(height uint64) RequestState {
	if r.State == StateDecrypted {
		return StateDecrypted
	}
	if height >= r.UnlockBlockHeight {
		return StateUnlockable
	}
	return StateRegistered
}

// BlocksRemaining is zero once the target height is reached.
func (r *UnlockRequest) BlocksRemaining(height uint64) uint64 {
	if height >= r.UnlockBlockHeight {
		return 0
	}
	return r.UnlockBlockHeight - height
}

// UnlockState answers "can this be decrypted yet, and if not, when".
type UnlockState struct {
	RequestID        id.UnlockRequestID `json:"request_id"`
	State            RequestState       `json:"state"`
	Unlocked         bool               `json:"unlocked"`
	CurrentHeight    uint64             `json:"current_height"`
	TargetHeight     uint64             `json:"target_height"`
	BlocksRemaining  uint64             `json:"blocks_remaining"`
	EstimatedSeconds int64              `json:"estimated_seconds"`
}

// NewUnlockState evaluates req at height; blockTime drives the estimate.
func NewUnlockState(req *UnlockRequest, height uint64, blockTime time.Duration) UnlockState {
	state := req.EffectiveState(height)
	var remaining uint64
	if state == StateRegistered {
		remaining = req.BlocksRemaining(height)
	}
	return UnlockState{
		RequestID:        req.ID,
		State:            state,
		Unlocked:         state != StateRegistered,
		CurrentHeight:    height,
		TargetHeight:     req.UnlockBlockHeight,
		BlocksRemaining:  remaining,
		EstimatedSeconds: int64((time.Duration(remaining) * blockTime).Seconds()),
	}
}

// CallbackOutcome reports what an unlock callback did.
type CallbackOutcome string

const (
	OutcomeDecrypted CallbackOutcome = "decrypted"
	OutcomeDuplicate CallbackOutcome = "duplicate"
)

// Callback is an unlock notification as delivered by the relay, webhook or poller.
type Callback struct {
	RequestID id.UnlockRequestID `json:"request_id"`
	Material  []byte             `json:"material"`
}
