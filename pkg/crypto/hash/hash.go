package hash

import (
	"crypto/sha256"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/nspcc-dev/cmtree/pkg/util"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Func hashes arbitrary data into a fixed-width digest. Implementations
// must be pure and collision resistant.
type Func func([]byte) util.Uint256

// Names of the hash functions accepted by ByName.
const (
	NameSha256     = "sha256"
	NameKeccak256  = "keccak256"
	NameBlake2b256 = "blake2b256"
	NameMiMCBN254  = "mimc_bn254"
)

// Sha256 hashes the incoming byte slice using the sha256 algorithm.
func Sha256(data []byte) util.Uint256 {
	return sha256.Sum256(data)
}

// DoubleSha256 performs sha256 twice on the given data.
func DoubleSha256(data []byte) util.Uint256 {
	h1 := Sha256(data)
	return Sha256(h1.BytesBE())
}

// Keccak256 hashes the incoming byte slice using the legacy keccak256
// algorithm (the pre-FIPS variant used by Ethereum contracts).
func Keccak256(data []byte) util.Uint256 {
	var u util.Uint256
	hasher := sha3.NewLegacyKeccak256()
	_, _ = hasher.Write(data)
	hasher.Sum(u[:0])
	return u
}

// Blake2b256 hashes the incoming byte slice using the blake2b-256
// algorithm.
func Blake2b256(data []byte) util.Uint256 {
	return blake2b.Sum256(data)
}

// mimcChunk is the number of input bytes packed into a single MiMC block.
// 31 bytes always fit a canonical BN254 field element.
const mimcChunk = 31

// MiMCBN254 hashes the incoming byte slice with MiMC over the BN254 scalar
// field. The input is packed into 31-byte big-endian chunks so that every
// block is a canonical field element; the digest is the 32-byte big-endian
// form of the resulting element. This makes tree commitments cheap to open
// inside SNARK circuits that already carry a MiMC gadget.
func MiMCBN254(data []byte) util.Uint256 {
	h := mimc.NewMiMC()
	var block [mimc.BlockSize]byte
	for len(data) > 0 {
		n := len(data)
		if n > mimcChunk {
			n = mimcChunk
		}
		for i := range block {
			block[i] = 0
		}
		copy(block[mimc.BlockSize-n:], data[:n])
		_, _ = h.Write(block[:])
		data = data[n:]
	}
	var u util.Uint256
	copy(u[:], h.Sum(nil))
	return u
}

// Checksum returns the double-sha256 checksum of the given data.
func Checksum(data []byte) []byte {
	b := DoubleSha256(data)
	return b[:4]
}

// Combine3 hashes key together with two subtree digests, sorting the
// digests first so that the result does not depend on their order. The
// zero digest stands for an empty subtree.
func Combine3(h Func, key, a, b util.Uint256) util.Uint256 {
	if a.CompareTo(b) > 0 {
		a, b = b, a
	}
	buf := make([]byte, 0, 3*util.Uint256Size)
	buf = append(buf, key[:]...)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return h(buf)
}

// ByName returns the hash function registered under the given name. Hash
// function choice is per-tree configuration, trees with different
// functions can coexist in one process.
func ByName(name string) (Func, error) {
	switch name {
	case NameSha256:
		return Sha256, nil
	case NameKeccak256:
		return Keccak256, nil
	case NameBlake2b256:
		return Blake2b256, nil
	case NameMiMCBN254:
		return MiMCBN254, nil
	default:
		return nil, fmt.Errorf("unknown hash function %q", name)
	}
}
