package config

import (
	"fmt"

	"github.com/nspcc-dev/cmtree/pkg/crypto/hash"
	"github.com/nspcc-dev/cmtree/pkg/simplemt"
	"github.com/nspcc-dev/cmtree/pkg/util"
)

// TreeConfiguration describes the authenticated key set served by the
// node.
type TreeConfiguration struct {
	// HashFunction names the digest algorithm used for both node
	// priorities and Merkle commitments, see hash.ByName for the
	// accepted values.
	HashFunction string `yaml:"HashFunction"`
	// MaxProofLength bounds the number of steps accepted by proof
	// verification.
	MaxProofLength int `yaml:"MaxProofLength"`
	// SimpleTreeDepth is the depth of the auxiliary value index, zero
	// disables the index entirely.
	SimpleTreeDepth int `yaml:"SimpleTreeDepth"`
	// Preload is the set of keys inserted on startup.
	Preload []util.Uint256 `yaml:"Preload"`
}

// Validate checks TreeConfiguration for internal consistency. It returns
// an error if the configuration is invalid.
func (t *TreeConfiguration) Validate() error {
	if _, err := hash.ByName(t.HashFunction); err != nil {
		return err
	}
	if t.MaxProofLength < 0 {
		return fmt.Errorf("invalid MaxProofLength %d: must not be negative", t.MaxProofLength)
	}
	if t.SimpleTreeDepth < 0 || t.SimpleTreeDepth > simplemt.MaxDepth {
		return fmt.Errorf("invalid SimpleTreeDepth %d: must be in range [0, %d]", t.SimpleTreeDepth, simplemt.MaxDepth)
	}
	seen := make(map[util.Uint256]bool, len(t.Preload))
	for _, k := range t.Preload {
		if seen[k] {
			return fmt.Errorf("duplicate preload key %s", k)
		}
		seen[k] = true
	}
	return nil
}
