// Package address converts member keys to and from their base58
// check-encoded address form.
package address

import (
	"errors"

	"github.com/nspcc-dev/cmtree/pkg/encoding/base58"
	"github.com/nspcc-dev/cmtree/pkg/util"
)

// Prefix is the byte prepended to a key before base58 check encoding. It
// can be changed and defaults to 0x4d.
var Prefix = byte(0x4d)

// Uint256ToString returns the address form of the given member key.
func Uint256ToString(u util.Uint256) string {
	b := append([]byte{Prefix}, u.BytesBE()...)
	return base58.CheckEncode(b)
}

// StringToUint256 attempts to decode the given address into a member key.
func StringToUint256(s string) (u util.Uint256, err error) {
	b, err := base58.CheckDecode(s)
	if err != nil {
		return u, err
	}
	if len(b) != util.Uint256Size+1 {
		return u, errors.New("wrong address length")
	}
	if b[0] != Prefix {
		return u, errors.New("wrong address prefix")
	}
	return util.Uint256DecodeBytesBE(b[1:])
}
