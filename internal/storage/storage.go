// Package storage defines the content-addressed blob store used for encrypted
// KYC payloads.
//
// Contract:
//   - Put is idempotent and returns the CIDv1 (raw, sha2-256) of the bytes written.
//   - Stored objects are immutable.
//   - Get returns sentinel.ErrNotFound when the CID is absent and ErrCIDMismatch
//     if a backend hands back bytes that do not hash to the requested CID.
//   - Backend outages are reported wrapped in sentinel.ErrUnavailable.
package storage

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	ErrInvalidCID  = errors.New("invalid cid")
	ErrCIDMismatch = errors.New("content does not match cid")
)

type ContentStore interface {
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}

// ComputeCID returns the CIDv1 (raw codec, sha2-256) of data.
func ComputeCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// ParseCID decodes a stored reference. Only raw sha2-256 CIDs are accepted.
func ParseCID(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, errors.Join(ErrInvalidCID, err)
	}
	if id.Type() != cid.Raw || id.Prefix().MhType != multihash.SHA2_256 {
		return cid.Undef, ErrInvalidCID
	}
	return id, nil
}

// Verify reports ErrCIDMismatch if data does not hash to id.
func Verify(id cid.Cid, data []byte) error {
	got, err := ComputeCID(data)
	if err != nil {
		return err
	}
	if !got.Equals(id) {
		return ErrCIDMismatch
	}
	return nil
}
