package simnet

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"

	"unikyc/internal/timelock/ports"
	id "unikyc/pkg/domain"
)

var (
	ErrInsufficientGas = errors.New("insufficient gas budget")
	ErrUnknownRequest  = errors.New("unknown request")
)

type registration struct {
	reg      ports.Registration
	material []byte
}

// Network releases material for a registration once its chain reaches the
// unlock height. Material is a digest of the request and ciphertext, which is
// enough for callers that only need proof of release.
type Network struct {
	chain ports.ChainOracle

	mu       sync.Mutex
	requests map[id.UnlockRequestID]registration
	failNext error
}

func NewNetwork(chain ports.ChainOracle) *Network {
	return &Network{chain: chain, requests: make(map[id.UnlockRequestID]registration)}
}

// FailNext makes the next Register call fail with err.
func (n *Network) FailNext(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failNext = err
}

func (n *Network) Register(ctx context.Context, reg ports.Registration) (id.UnlockRequestID, error) {
	if err := ctx.Err(); err != nil {
		return id.UnlockRequestID{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failNext != nil {
		err := n.failNext
		n.failNext = nil
		return id.UnlockRequestID{}, err
	}
	if reg.GasBudget == 0 {
		return id.UnlockRequestID{}, ErrInsufficientGas
	}
	requestID := id.NewUnlockRequestID()
	h := sha256.New()
	h.Write([]byte(requestID.String()))
	h.Write(reg.Ciphertext)
	n.requests[requestID] = registration{reg: reg, material: h.Sum(nil)}
	return requestID, nil
}

func (n *Network) Status(ctx context.Context, requestID id.UnlockRequestID) (ports.NetworkStatus, error) {
	n.mu.Lock()
	r, ok := n.requests[requestID]
	n.mu.Unlock()
	if !ok {
		return ports.NetworkStatus{}, ErrUnknownRequest
	}
	height, err := n.chain.CurrentHeight(ctx)
	if err != nil {
		return ports.NetworkStatus{}, err
	}
	if height < r.reg.UnlockBlockHeight {
		return ports.NetworkStatus{}, nil
	}
	return ports.NetworkStatus{Released: true, Material: r.material}, nil
}
