package result

import (
	"github.com/nspcc-dev/cmtree/pkg/cmt"
	"github.com/nspcc-dev/cmtree/pkg/util"
)

// Root is a result of the getroot call.
type Root struct {
	Root util.Uint256 `json:"root"`
	Size int          `json:"size"`
}

// KeyUpdate is a result of the mutating insertkey/removekey calls, it
// carries the root committing to the updated key set.
type KeyUpdate struct {
	Key  util.Uint256 `json:"key"`
	Root util.Uint256 `json:"root"`
	Size int          `json:"size"`
}

// GetProof is a result of the getproof call: the proof itself plus the
// root it was taken against.
type GetProof struct {
	Root      util.Uint256 `json:"root"`
	Existence bool         `json:"existence"`
	Proof     *cmt.Proof   `json:"proof"`
}

// VerifyProof is a result of the verifyproof call.
type VerifyProof struct {
	Valid bool `json:"valid"`
}

// ValidateAddress represents a result of the validateaddress call. Notice
// that the address is an interface{} here because the server echoes back
// whatever it received.
type ValidateAddress struct {
	Address interface{} `json:"address"`
	IsValid bool        `json:"isvalid"`
}
