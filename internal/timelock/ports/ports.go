package ports

import (
	"context"

	id "unikyc/pkg/domain"
)

// Registration is a submission to the conditional-encryption network.
type Registration struct {
	CiphertextRef     string
	Ciphertext        []byte
	UnlockBlockHeight uint64
	GasBudget         uint64
}

// NetworkStatus is the network's view of a registered request. Material is
// set once the network has released the decryption material.
type NetworkStatus struct {
	Released bool
	Material []byte
}

// Network is the conditional-encryption network.
type Network interface {
	Register(ctx context.Context, reg Registration) (id.UnlockRequestID, error)
	Status(ctx context.Context, requestID id.UnlockRequestID) (NetworkStatus, error)
}

// ChainOracle reports the latest observed block height of the public ledger.
type ChainOracle interface {
	CurrentHeight(ctx context.Context) (uint64, error)
}

// CallbackHandler consumes validated unlock notifications. Implementations
// must be idempotent; every delivery path is at-least-once.
type CallbackHandler interface {
	HandleUnlockCallback(ctx context.Context, requestID id.UnlockRequestID, material []byte) error
}
