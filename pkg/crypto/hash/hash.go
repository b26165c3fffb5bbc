/*
Package hash provides the hashing functions used by Substrate runtimes for
storage keys, account identifiers and signing payloads.
*/
package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/nspcc-dev/subgo/pkg/util"
	"golang.org/x/crypto/blake2b"
)

// Blake2b256 returns the 32-byte blake2b digest of data.
func Blake2b256(data []byte) util.Hash {
	return blake2b.Sum256(data)
}

// Blake2b128 returns the 16-byte blake2b digest of data.
func Blake2b128(data []byte) []byte {
	h, _ := blake2b.New(16, nil) // Never errors for valid size and no key.
	_, _ = h.Write(data)
	return h.Sum(nil)
}

// Blake2b512 returns the 64-byte blake2b digest of data.
func Blake2b512(data []byte) []byte {
	sum := blake2b.Sum512(data)
	return sum[:]
}

// Twox returns the concatenation of little-endian xxhash64 digests of data
// computed with seeds 0..n-1, Twox(data, 2) is the 128-bit twox hash.
func Twox(data []byte, n int) []byte {
	res := make([]byte, 0, 8*n)
	for seed := 0; seed < n; seed++ {
		d := xxhash.NewWithSeed(uint64(seed))
		_, _ = d.Write(data)
		res = binary.LittleEndian.AppendUint64(res, d.Sum64())
	}
	return res
}

// Twox64 is a 64-bit twox hash of data.
func Twox64(data []byte) []byte {
	return Twox(data, 1)
}

// Twox128 is a 128-bit twox hash of data.
func Twox128(data []byte) []byte {
	return Twox(data, 2)
}

// Twox256 is a 256-bit twox hash of data.
func Twox256(data []byte) []byte {
	return Twox(data, 4)
}
