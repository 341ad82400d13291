// Package cmdargs contains the argument parsing helpers shared by the CLI
// commands.
package cmdargs

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/cmtree/pkg/encoding/address"
	"github.com/nspcc-dev/cmtree/pkg/util"
)

// ParseKey converts a command line argument into a tree key. The same
// forms the RPC server accepts are recognized: a big-endian hex string
// (64 digits, "0x" prefix optional), a base58check address or a
// non-negative decimal number widened to 32 big-endian bytes.
func ParseKey(s string) (util.Uint256, error) {
	if u, err := util.Uint256DecodeStringBE(s); err == nil {
		return u, nil
	}
	if u, err := address.StringToUint256(s); err == nil {
		return u, nil
	}
	bi, ok := new(big.Int).SetString(s, 10)
	if !ok || bi.Sign() < 0 {
		return util.Uint256{}, errors.New("not a valid key, hex, address or number expected")
	}
	n, overflow := uint256.FromBig(bi)
	if overflow {
		return util.Uint256{}, errors.New("number does not fit into a 32-byte key")
	}
	return util.Uint256(n.Bytes32()), nil
}
