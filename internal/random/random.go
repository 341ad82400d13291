// Package random contains a set of functions to generate random test data.
package random

import (
	"math/rand"
	"time"

	"github.com/nspcc-dev/cmtree/pkg/util"
)

// Int returns a random integer in [min, max).
func Int(min, max int) int {
	return min + rand.Intn(max-min)
}

// Bytes returns a random byte slice with the specified length.
func Bytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

// Uint256 returns a random Uint256.
func Uint256() util.Uint256 {
	str := Bytes(util.Uint256Size)
	u, _ := util.Uint256DecodeBytesBE(str)
	return u
}

func init() {
	rand.Seed(time.Now().UTC().UnixNano())
}
