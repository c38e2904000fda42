package cipher

import (
	"fmt"

	"github.com/multiformats/go-multihash"

	dErrors "unikyc/pkg/domain-errors"
)

const (
	MinShares = 2
	MaxShares = 16
)

// Scheme is the K-of-N parameter pair chosen at encryption time.
type Scheme struct {
	TotalShares    int // N
	RequiredShares int // K
}

// Validate enforces 2 <= K <= N <= 16.
func (s Scheme) Validate() error {
	switch {
	case s.TotalShares < MinShares || s.TotalShares > MaxShares:
		return dErrors.New(dErrors.CodeInvalidScheme,
			fmt.Sprintf("total shares must be between %d and %d", MinShares, MaxShares))
	case s.RequiredShares < MinShares:
		return dErrors.New(dErrors.CodeInvalidScheme, "required shares must be at least 2")
	case s.RequiredShares > s.TotalShares:
		return dErrors.New(dErrors.CodeInvalidScheme, "required shares cannot exceed total shares")
	}
	return nil
}

func (s Scheme) String() string {
	return fmt.Sprintf("%d-of-%d", s.RequiredShares, s.TotalShares)
}

// ThresholdScheme is the scheme as recorded on a KYC record: the parameters
// plus the digest of every share, indexed by share index - 1.
type ThresholdScheme struct {
	Scheme
	ShareDigests []multihash.Multihash
}

// Validate checks the parameters and that exactly N digests are present.
func (t ThresholdScheme) Validate() error {
	if err := t.Scheme.Validate(); err != nil {
		return err
	}
	if len(t.ShareDigests) != t.TotalShares {
		return dErrors.New(dErrors.CodeInvalidScheme, "share digest count must equal total shares")
	}
	return nil
}

// DigestStrings renders digests in base58 for persistence.
func (t ThresholdScheme) DigestStrings() []string {
	out := make([]string, len(t.ShareDigests))
	for i, d := range t.ShareDigests {
		out[i] = d.B58String()
	}
	return out
}

// ParseDigests decodes base58 digests produced by DigestStrings.
func ParseDigests(encoded []string) ([]multihash.Multihash, error) {
	out := make([]multihash.Multihash, len(encoded))
	for i, s := range encoded {
		mh, err := multihash.FromB58String(s)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidScheme, "invalid share digest")
		}
		out[i] = mh
	}
	return out, nil
}

// DigestOf returns the sha2-256 multihash of a share.
func DigestOf(share []byte) (multihash.Multihash, error) {
	return multihash.Sum(share, multihash.SHA2_256, -1)
}
