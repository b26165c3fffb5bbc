/*
Package keys implements a development keyring for Substrate-style chains:
secp256k1 ECDSA keys derived from human-readable URIs like `//Alice`, account
identifiers and SS58 addresses. Production signers can be plugged in via the
Signer interface instead.
*/
package keys

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/nspcc-dev/subgo/pkg/crypto/hash"
)

// Scheme is a signature scheme, its value is the MultiSignature variant index.
type Scheme byte

// Signature schemes.
const (
	Ed25519 Scheme = 0
	Sr25519 Scheme = 1
	Ecdsa   Scheme = 2
)

// EcdsaSignatureLen is the length of r||s||v ECDSA signature.
const EcdsaSignatureLen = 65

// Signature is a signature along with the scheme it's made with.
type Signature struct {
	Scheme Scheme
	Bytes  []byte
}

// PrivateKey is a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// NewPrivateKeyFromBytes returns a PrivateKey created from the 32-byte secret.
func NewPrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("invalid byte length: expected %d bytes got %d", 32, len(b))
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(b); overflow || s.IsZero() {
		return nil, errors.New("secret is not a valid secp256k1 scalar")
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(&s)}, nil
}

// NewPrivateKeyFromHex returns a PrivateKey created from the given hex string.
func NewPrivateKeyFromHex(str string) (*PrivateKey, error) {
	b, err := hex.DecodeString(str)
	if err != nil {
		return nil, err
	}
	return NewPrivateKeyFromBytes(b)
}

// Bytes returns the 32-byte secret.
func (p *PrivateKey) Bytes() []byte {
	return p.key.Serialize()
}

// PublicKey returns the compressed (33 bytes) public key.
func (p *PrivateKey) PublicKey() []byte {
	return p.key.PubKey().SerializeCompressed()
}

// AccountID returns the account identifier of the key, that is a blake2b-256
// hash of the compressed public key.
func (p *PrivateKey) AccountID() AccountID {
	return AccountID(hash.Blake2b256(p.PublicKey()))
}

// Sign signs blake2b-256 hash of the message returning r||s||v signature.
func (p *PrivateKey) Sign(msg []byte) Signature {
	digest := hash.Blake2b256(msg)
	compact := ecdsa.SignCompact(p.key, digest[:], true)
	// compact is [27+4+v] || r || s.
	sig := make([]byte, EcdsaSignatureLen)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 27 - 4
	return Signature{Scheme: Ecdsa, Bytes: sig}
}

// Verify checks that sig is a valid signature of msg made by the owner of the
// given compressed public key.
func Verify(pub []byte, msg []byte, sig Signature) bool {
	if sig.Scheme != Ecdsa || len(sig.Bytes) != EcdsaSignatureLen || sig.Bytes[64] > 3 {
		return false
	}
	compact := make([]byte, EcdsaSignatureLen)
	compact[0] = sig.Bytes[64] + 27 + 4
	copy(compact[1:], sig.Bytes[:64])
	digest := hash.Blake2b256(msg)
	recovered, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return false
	}
	return hex.EncodeToString(recovered.SerializeCompressed()) == hex.EncodeToString(pub)
}
