// Package cipher splits a KYC payload so that any K of N shares recover it
// and fewer reveal nothing.
//
// A random ristretto255 scalar is Shamir-shared with circl's secretsharing.
// The payload key is derived from that scalar with HKDF-SHA256 and the payload
// is sealed once with XChaCha20-Poly1305. Shares carry only their key share;
// the sealed payload is stored once, by content address, and handed back to
// Decrypt together with the shares.
package cipher

import (
	"bytes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/cloudflare/circl/group"
	"github.com/cloudflare/circl/secretsharing"
	"github.com/multiformats/go-multihash"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	dErrors "unikyc/pkg/domain-errors"
)

var (
	curve   = group.Ristretto255
	kdfInfo = []byte("unikyc kyc payload key v1")
)

// Sealed is the output of Encrypt. Shares[i] has index i+1 and Digests[i] is its digest.
type Sealed struct {
	Shares     [][]byte
	Digests    []multihash.Multihash
	Ciphertext []byte // nonce | ciphertext
}

// Threshold returns the scheme as it should be recorded alongside the ciphertext.
func (s *Sealed) Threshold(scheme Scheme) ThresholdScheme {
	return ThresholdScheme{Scheme: scheme, ShareDigests: s.Digests}
}

// Cipher is safe for concurrent use.
type Cipher struct {
	rand io.Reader
}

type Option func(*Cipher)

// WithRand overrides the randomness source.
func WithRand(r io.Reader) Option {
	return func(c *Cipher) { c.rand = r }
}

func New(opts ...Option) *Cipher {
	c := &Cipher{rand: rand.Reader}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt seals plaintext and splits the key into scheme.TotalShares shares.
func (c *Cipher) Encrypt(plaintext []byte, scheme Scheme) (*Sealed, error) {
	if err := scheme.Validate(); err != nil {
		return nil, err
	}

	secret := curve.RandomNonZeroScalar(c.rand)
	secretBytes, err := secret.MarshalBinary()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "marshal data key")
	}
	aead, err := newAEAD(secretBytes)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLen, nonceLen+len(plaintext)+tagLen)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate nonce")
	}
	sealed := aead.Seal(nonce, nonce, plaintext, associatedData(scheme))

	ss := secretsharing.New(c.rand, uint(scheme.RequiredShares-1), secret)
	keyShares := ss.Share(uint(scheme.TotalShares))

	out := &Sealed{
		Shares:     make([][]byte, scheme.TotalShares),
		Digests:    make([]multihash.Multihash, scheme.TotalShares),
		Ciphertext: sealed,
	}
	for i, ks := range keyShares {
		value, err := ks.Value.MarshalBinary()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "marshal key share")
		}
		share := encodeShare(i+1, scheme, value)
		digest, err := DigestOf(share)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "digest share")
		}
		out.Shares[i] = share
		out.Digests[i] = digest
	}
	return out, nil
}

// Decrypt opens the sealed payload with at least K shares of the given scheme.
//
// Fewer than K supplied shares fail before any parsing. Each supplied share
// must then parse, match the scheme and match its recorded digest. Duplicates
// collapse by index and fewer than K distinct shares fail again. Shares that
// recover a key that does not open the ciphertext are reported as corrupt.
func (c *Cipher) Decrypt(ciphertext []byte, shares [][]byte, scheme ThresholdScheme) ([]byte, error) {
	if err := scheme.Validate(); err != nil {
		return nil, err
	}
	if len(shares) < scheme.RequiredShares {
		return nil, dErrors.New(dErrors.CodeInsufficientShares, "not enough shares to decrypt")
	}

	distinct := make(map[int]parsedShare, len(shares))
	for _, raw := range shares {
		p, err := parseShare(raw)
		if err != nil {
			return nil, err
		}
		if p.scheme != scheme.Scheme {
			return nil, dErrors.New(dErrors.CodeCorruptShare, "share belongs to a different scheme")
		}
		digest, err := DigestOf(raw)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "digest share")
		}
		if !bytes.Equal(digest, scheme.ShareDigests[p.index-1]) {
			return nil, dErrors.New(dErrors.CodeCorruptShare, "share digest mismatch")
		}
		distinct[p.index] = p
	}
	if len(distinct) < scheme.RequiredShares {
		return nil, dErrors.New(dErrors.CodeInsufficientShares, "not enough distinct shares to decrypt")
	}
	if len(ciphertext) < nonceLen+tagLen {
		return nil, dErrors.New(dErrors.CodeCorruptShare, "sealed payload is truncated")
	}

	keyShares := make([]secretsharing.Share, 0, len(distinct))
	for index, p := range distinct {
		id := curve.NewScalar().SetUint64(uint64(index))
		value := curve.NewScalar()
		if err := value.UnmarshalBinary(p.keyShare); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeCorruptShare, "invalid key share")
		}
		keyShares = append(keyShares, secretsharing.Share{ID: id, Value: value})
	}
	secret, err := secretsharing.Recover(uint(scheme.RequiredShares-1), keyShares)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInsufficientShares, "recover data key")
	}
	secretBytes, err := secret.MarshalBinary()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "marshal data key")
	}
	aead, err := newAEAD(secretBytes)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, ciphertext[:nonceLen], ciphertext[nonceLen:], associatedData(scheme.Scheme))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeCorruptShare, "shares do not open the payload")
	}
	return plaintext, nil
}

func newAEAD(secret []byte) (stdcipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, kdfInfo), key); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "derive payload key")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "init aead")
	}
	return aead, nil
}
