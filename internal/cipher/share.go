package cipher

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"

	dErrors "unikyc/pkg/domain-errors"
)

// Share wire layout:
//
//	version(1) | index(1) | N(1) | K(1) | keyShare(32)
const (
	shareVersion byte = 2
	headerLen         = 4
	keyShareLen       = 32
	shareLen          = headerLen + keyShareLen
	nonceLen          = chacha20poly1305.NonceSizeX
	tagLen            = chacha20poly1305.Overhead
)

type parsedShare struct {
	index    int
	scheme   Scheme
	keyShare []byte
}

func encodeShare(index int, scheme Scheme, keyShare []byte) []byte {
	out := make([]byte, 0, shareLen)
	out = append(out, shareVersion, byte(index), byte(scheme.TotalShares), byte(scheme.RequiredShares))
	return append(out, keyShare...)
}

func parseShare(raw []byte) (parsedShare, error) {
	if len(raw) != shareLen {
		return parsedShare{}, dErrors.New(dErrors.CodeCorruptShare, "share has the wrong length")
	}
	if raw[0] != shareVersion {
		return parsedShare{}, dErrors.New(dErrors.CodeCorruptShare, "unsupported share version")
	}
	p := parsedShare{
		index:    int(raw[1]),
		scheme:   Scheme{TotalShares: int(raw[2]), RequiredShares: int(raw[3])},
		keyShare: raw[headerLen:],
	}
	if p.index < 1 || p.index > p.scheme.TotalShares {
		return parsedShare{}, dErrors.New(dErrors.CodeCorruptShare, "share index out of range")
	}
	return p, nil
}

// associatedData binds the scheme to the AEAD so a share re-labelled with a
// different N or K fails to open.
func associatedData(s Scheme) []byte {
	ad := make([]byte, 0, 16)
	ad = append(ad, "unikyc/v1"...)
	ad = binary.BigEndian.AppendUint16(ad, uint16(s.TotalShares))
	ad = binary.BigEndian.AppendUint16(ad, uint16(s.RequiredShares))
	return ad
}
