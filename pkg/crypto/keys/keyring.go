package keys

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/nspcc-dev/subgo/pkg/crypto/hash"
	"github.com/nspcc-dev/subgo/pkg/scale"
	"github.com/nspcc-dev/subgo/pkg/util"
)

// DevSeed is the secret seed of the well-known development phrase, it's used
// when URI has no explicit seed ("//Alice").
const DevSeed = "0xfac7959dbfe72f052e5a0c3c8d6530f202b02fd8f9f5ca3580ec8deb7797479e"

const hdkdTag = "Secp256k1HDKD"

var (
	// ErrUnknownAccount is returned when Keyring has no key for the account.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrSoftJunction is returned for URIs with soft derivation junctions that
	// ECDSA keys can't support.
	ErrSoftJunction = errors.New("soft junctions are not supported for ecdsa keys")
)

// Signer is a signing capability. Given an account and message bytes it
// returns a signature of the message along with the public key of the account.
type Signer interface {
	Sign(account AccountID, msg []byte) (Signature, []byte, error)
}

// Keyring is a thread-safe set of keys implementing Signer.
type Keyring struct {
	lock sync.RWMutex
	keys map[AccountID]*PrivateKey
}

// NewKeyring creates an empty Keyring.
func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[AccountID]*PrivateKey)}
}

// Add adds the key to the keyring returning its account.
func (k *Keyring) Add(p *PrivateKey) AccountID {
	id := p.AccountID()
	k.lock.Lock()
	k.keys[id] = p
	k.lock.Unlock()
	return id
}

// AddFromURI derives the key from the URI (see NewPrivateKeyFromURI) and adds
// it to the keyring.
func (k *Keyring) AddFromURI(uri string) (AccountID, error) {
	p, err := NewPrivateKeyFromURI(uri)
	if err != nil {
		return AccountID{}, err
	}
	return k.Add(p), nil
}

// Sign implements the Signer interface.
func (k *Keyring) Sign(account AccountID, msg []byte) (Signature, []byte, error) {
	k.lock.RLock()
	p, ok := k.keys[account]
	k.lock.RUnlock()
	if !ok {
		return Signature{}, nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	return p.Sign(msg), p.PublicKey(), nil
}

// NewPrivateKeyFromURI derives a key from a secret URI of the form
// `[0x<seed>]//hard1//hard2`. Empty seed means DevSeed. Soft junctions
// (single slash) and passwords (`///`) are rejected since ECDSA has no soft
// derivation.
func NewPrivateKeyFromURI(uri string) (*PrivateKey, error) {
	if strings.Contains(uri, "///") {
		return nil, errors.New("URI passwords are not supported")
	}
	seedStr, path := uri, ""
	if i := strings.Index(uri, "/"); i >= 0 {
		seedStr, path = uri[:i], uri[i:]
	}
	if seedStr == "" {
		seedStr = DevSeed
	}
	if !strings.HasPrefix(seedStr, "0x") {
		return nil, errors.New("only hex secret seeds are supported")
	}
	seed, err := util.DecodeHex(seedStr)
	if err != nil {
		return nil, fmt.Errorf("bad seed: %w", err)
	}
	if len(seed) != 32 {
		return nil, fmt.Errorf("seed should be 32 bytes, got %d", len(seed))
	}
	for len(path) > 0 {
		if !strings.HasPrefix(path, "//") {
			return nil, ErrSoftJunction
		}
		path = path[2:]
		end := strings.Index(path, "/")
		if end < 0 {
			end = len(path)
		}
		junction := path[:end]
		if junction == "" {
			return nil, errors.New("empty junction")
		}
		seed = deriveHard(seed, chainCode(junction))
		path = path[end:]
	}
	return NewPrivateKeyFromBytes(seed)
}

// chainCode returns the junction chain code: numeric junctions are encoded
// as u64, others as SCALE strings; codes longer than 32 bytes are hashed.
func chainCode(junction string) []byte {
	w := scale.NewBinWriter()
	if n, err := strconv.ParseUint(junction, 10, 64); err == nil {
		w.WriteU64LE(n)
	} else {
		w.WriteString(junction)
	}
	enc := w.Bytes()
	cc := make([]byte, 32)
	if len(enc) > 32 {
		sum := hash.Blake2b256(enc)
		copy(cc, sum[:])
	} else {
		copy(cc, enc)
	}
	return cc
}

func deriveHard(seed []byte, cc []byte) []byte {
	w := scale.NewBinWriter()
	w.WriteString(hdkdTag)
	w.WriteBytes(seed)
	w.WriteBytes(cc)
	sum := hash.Blake2b256(w.Bytes())
	return sum[:]
}
