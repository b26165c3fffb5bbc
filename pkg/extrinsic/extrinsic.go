/*
Package extrinsic implements signed Substrate extrinsics (format version 4)
with immortal era: call encoding, signing payload construction and
serialization.
*/
package extrinsic

import (
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/subgo/pkg/chainrpc"
	"github.com/nspcc-dev/subgo/pkg/codec"
	"github.com/nspcc-dev/subgo/pkg/crypto/hash"
	"github.com/nspcc-dev/subgo/pkg/crypto/keys"
	"github.com/nspcc-dev/subgo/pkg/scale"
	"github.com/nspcc-dev/subgo/pkg/util"
)

const (
	// Version is the extrinsic format version.
	Version = 4
	// signedFlag marks signed extrinsics in the version byte.
	signedFlag = 0x80
	// immortalEra is the encoding of the immortal era.
	immortalEra = 0x00
	// maxPayloadSize is the size of signing payload that is signed as is,
	// longer ones are hashed first.
	maxPayloadSize = 256
	// addressType is the schema type used to encode the signer.
	addressType = "Address"
)

var (
	errUnsigned = errors.New("unsigned extrinsics are not supported")
	errMortal   = errors.New("mortal era is not supported")
)

// SignedExtra is the signed extension data included into the extrinsic.
type SignedExtra struct {
	Nonce uint32
	// Tip is an optional tip for the block author, nil means zero.
	Tip *uint256.Int
}

// EncodeBinary encodes the era, nonce and tip.
func (e SignedExtra) EncodeBinary(w *scale.BinWriter) {
	w.WriteB(immortalEra)
	w.WriteCompact(uint64(e.Nonce))
	if e.Tip == nil {
		w.WriteCompact(0)
		return
	}
	w.WriteCompactBig(e.Tip)
}

// DecodeBinary decodes the era, nonce and tip.
func (e *SignedExtra) DecodeBinary(r *scale.BinReader) {
	if era := r.ReadB(); r.Err == nil && era != immortalEra {
		r.Err = errMortal
		return
	}
	n := r.ReadCompact()
	if r.Err == nil && n > math.MaxUint32 {
		r.Err = fmt.Errorf("nonce %d is too big", n)
		return
	}
	e.Nonce = uint32(n)
	e.Tip = r.ReadCompactBig()
	if e.Tip.IsZero() {
		e.Tip = nil
	}
}

// Additional is the data that is signed, but not included into the
// extrinsic.
type Additional struct {
	SpecVersion        uint32
	TransactionVersion uint32
	Genesis            util.Hash
	// BlockHash is the era checkpoint, it's the genesis for immortal
	// transactions.
	BlockHash util.Hash
}

// NewAdditional returns Additional data for immortal transactions.
func NewAdditional(genesis util.Hash, v chainrpc.RuntimeVersion) Additional {
	return Additional{
		SpecVersion:        v.SpecVersion,
		TransactionVersion: v.TransactionVersion,
		Genesis:            genesis,
		BlockHash:          genesis,
	}
}

// EncodeBinary encodes Additional data.
func (a Additional) EncodeBinary(w *scale.BinWriter) {
	w.WriteU32LE(a.SpecVersion)
	w.WriteU32LE(a.TransactionVersion)
	w.WriteBytes(a.Genesis[:])
	w.WriteBytes(a.BlockHash[:])
}

// SigningPayload returns the data to be signed for the call.
func SigningPayload(call []byte, extra SignedExtra, add Additional) []byte {
	w := scale.NewBinWriter()
	w.WriteBytes(call)
	extra.EncodeBinary(w)
	add.EncodeBinary(w)
	b := w.Bytes()
	if len(b) > maxPayloadSize {
		h := hash.Blake2b256(b)
		return h[:]
	}
	return b
}

// Extrinsic is a signed extrinsic.
type Extrinsic struct {
	// Signer is the signer account, it's only set if the address is
	// an account ID.
	Signer keys.AccountID
	// Address is the encoded signer address.
	Address   []byte
	Signature keys.Signature
	Extra     SignedExtra
	// Call is the encoded call.
	Call []byte

	hash util.Hash
}

// Sign encodes the call, signs it with the account key and returns the
// extrinsic.
func Sign(reg *codec.Registry, signer keys.Signer, account keys.AccountID, call Call, extra SignedExtra, add Additional) (*Extrinsic, error) {
	c, err := call.Bytes(reg)
	if err != nil {
		return nil, fmt.Errorf("can't encode call: %w", err)
	}
	addr, err := reg.Encode(addressType, account)
	if err != nil {
		return nil, fmt.Errorf("can't encode signer address: %w", err)
	}
	sig, _, err := signer.Sign(account, SigningPayload(c, extra, add))
	if err != nil {
		return nil, fmt.Errorf("can't sign %s: %w", call, err)
	}
	return &Extrinsic{
		Signer:    account,
		Address:   addr,
		Signature: sig,
		Extra:     extra,
		Call:      c,
	}, nil
}

func signatureLen(s keys.Scheme) (int, error) {
	switch s {
	case keys.Ed25519, keys.Sr25519:
		return 64, nil
	case keys.Ecdsa:
		return keys.EcdsaSignatureLen, nil
	}
	return 0, fmt.Errorf("unknown signature scheme %d", s)
}

func (e *Extrinsic) encodeBinaryUnprefixed(w *scale.BinWriter) {
	w.WriteB(signedFlag | Version)
	w.WriteBytes(e.Address)
	if w.Err != nil {
		return
	}
	n, err := signatureLen(e.Signature.Scheme)
	if err != nil {
		w.Err = err
		return
	}
	if len(e.Signature.Bytes) != n {
		w.Err = fmt.Errorf("bad signature length %d", len(e.Signature.Bytes))
		return
	}
	w.WriteB(byte(e.Signature.Scheme))
	w.WriteBytes(e.Signature.Bytes)
	e.Extra.EncodeBinary(w)
	w.WriteBytes(e.Call)
}

// EncodeBinary encodes the extrinsic with its compact length prefix.
func (e *Extrinsic) EncodeBinary(w *scale.BinWriter) {
	inner := scale.NewBinWriter()
	e.encodeBinaryUnprefixed(inner)
	if inner.Err != nil {
		w.Err = inner.Err
		return
	}
	w.WriteVarBytes(inner.Bytes())
}

// Bytes returns the encoded extrinsic as it's sent to the node.
func (e *Extrinsic) Bytes() ([]byte, error) {
	w := scale.NewBinWriter()
	e.EncodeBinary(w)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// Hash returns the extrinsic hash (blake2b-256 of the encoded extrinsic), it
// can only be computed for a valid extrinsic.
func (e *Extrinsic) Hash() util.Hash {
	if e.hash.Equals(util.Hash{}) {
		b, err := e.Bytes()
		if err != nil {
			return util.Hash{}
		}
		e.hash = hash.Blake2b256(b)
	}
	return e.hash
}

// Decode decodes a signed extrinsic, the address is decoded with the schema
// type from the registry.
func Decode(reg *codec.Registry, data []byte) (*Extrinsic, error) {
	r := scale.NewBinReaderFromBuf(data)
	inner := r.ReadVarBytes()
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.Len())
	}
	addrType, err := reg.Type(addressType)
	if err != nil {
		return nil, err
	}

	e := new(Extrinsic)
	r = scale.NewBinReaderFromBuf(inner)
	ver := r.ReadB()
	if r.Err == nil {
		switch {
		case ver&signedFlag == 0:
			return nil, errUnsigned
		case ver&^signedFlag != Version:
			return nil, fmt.Errorf("unsupported extrinsic version %d", ver&^signedFlag)
		}
	}
	start := len(inner) - r.Len()
	addr := reg.DecodeFrom(r, addrType)
	if r.Err == nil {
		e.Address = inner[start : len(inner)-r.Len()]
		if en, ok := addr.(*codec.Enum); ok {
			if id, ok := en.Value.(keys.AccountID); ok {
				e.Signer = id
			}
		}
	}
	e.Signature.Scheme = keys.Scheme(r.ReadB())
	if r.Err == nil {
		n, err := signatureLen(e.Signature.Scheme)
		if err != nil {
			return nil, err
		}
		e.Signature.Bytes = make([]byte, n)
		r.ReadBytes(e.Signature.Bytes)
	}
	e.Extra.DecodeBinary(r)
	if r.Err != nil {
		return nil, r.Err
	}
	e.Call = inner[len(inner)-r.Len():]
	if len(e.Call) < len(Index{}) {
		return nil, errors.New("call is missing")
	}
	return e, nil
}
