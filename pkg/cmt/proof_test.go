package cmt

import (
	"testing"

	"github.com/nspcc-dev/cmtree/internal/random"
	"github.com/nspcc-dev/cmtree/internal/testserdes"
	"github.com/nspcc-dev/cmtree/pkg/crypto/hash"
	"github.com/nspcc-dev/cmtree/pkg/util"
	"github.com/stretchr/testify/require"
)

func cloneProof(p *Proof) *Proof {
	cp := *p
	if p.Steps != nil {
		cp.Steps = make([]ProofStep, len(p.Steps))
		copy(cp.Steps, p.Steps)
	}
	return &cp
}

func TestGetProof(t *testing.T) {
	keys := randomKeys(50)
	tr := newTestTree(t, keys...)
	root := tr.Root()

	t.Run("membership", func(t *testing.T) {
		for _, k := range keys {
			p := tr.GetProof(k)
			require.True(t, p.Existence)
			require.False(t, p.Empty)
			require.Equal(t, k, p.NodeKey)

			ok, err := tr.VerifyProof(root, k, p)
			require.NoError(t, err)
			require.True(t, ok)
		}
	})
	t.Run("root node", func(t *testing.T) {
		var found bool
		for _, k := range keys {
			p := tr.GetProof(k)
			if len(p.Steps) != 0 {
				continue
			}
			found = true
			ok, err := tr.VerifyProof(root, k, p)
			require.NoError(t, err)
			require.True(t, ok)
		}
		require.True(t, found)
	})
	t.Run("non-membership", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			k := random.Uint256()
			if tr.Has(k) {
				continue
			}
			p := tr.GetProof(k)
			require.False(t, p.Existence)
			require.False(t, p.Empty)
			require.NotEqual(t, k, p.NodeKey)
			// the slot the key would occupy must be empty
			if k.CompareTo(p.NodeKey) < 0 {
				require.Equal(t, util.Uint256{}, p.LeftDigest)
			} else {
				require.Equal(t, util.Uint256{}, p.RightDigest)
			}

			ok, err := tr.VerifyProof(root, k, p)
			require.NoError(t, err)
			require.True(t, ok)
		}
	})
	t.Run("wrong root", func(t *testing.T) {
		other := newTestTree(t, randomKeys(50)...)
		p := tr.GetProof(keys[0])
		ok, err := tr.VerifyProof(other.Root(), keys[0], p)
		require.NoError(t, err)
		require.False(t, ok)
	})
	t.Run("wrong hash function", func(t *testing.T) {
		p := tr.GetProof(keys[0])
		ok, err := VerifyProof(hash.Keccak256, 0, root, keys[0], p)
		require.NoError(t, err)
		require.False(t, ok)
	})
	t.Run("wrong key", func(t *testing.T) {
		p := tr.GetProof(keys[0])
		ok, err := tr.VerifyProof(root, keys[1], p)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestEmptyTreeProof(t *testing.T) {
	tr := New(nil, 0)
	key := random.Uint256()

	p := tr.GetProof(key)
	require.True(t, p.Empty)
	require.False(t, p.Existence)
	require.Empty(t, p.Steps)

	ok, err := tr.VerifyProof(tr.Root(), key, p)
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("wrong key", func(t *testing.T) {
		ok, err := tr.VerifyProof(tr.Root(), random.Uint256(), p)
		require.NoError(t, err)
		require.False(t, ok)
	})
	t.Run("non-zero root", func(t *testing.T) {
		other := newTestTree(t, randomKeys(4)...)
		ok, err := tr.VerifyProof(other.Root(), key, p)
		require.NoError(t, err)
		require.False(t, ok)
	})
	t.Run("non-trivial terminal", func(t *testing.T) {
		bad := cloneProof(p)
		bad.NodeKey = random.Uint256()
		_, err := tr.VerifyProof(tr.Root(), key, bad)
		require.ErrorIs(t, err, ErrMalformedProof)
	})
	t.Run("existence against empty tree", func(t *testing.T) {
		bad := cloneProof(p)
		bad.Existence = true
		_, err := tr.VerifyProof(tr.Root(), key, bad)
		require.ErrorIs(t, err, ErrMalformedProof)
	})
}

func TestVerifyProofTamper(t *testing.T) {
	keys := randomKeys(64)
	tr := newTestTree(t, keys...)
	root := tr.Root()

	var key util.Uint256
	var proof *Proof
	for _, k := range keys {
		if p := tr.GetProof(k); len(p.Steps) >= 2 {
			key, proof = k, p
			break
		}
	}
	require.NotNil(t, proof)

	cases := []struct {
		name   string
		mutate func(p *Proof)
	}{
		{"existence flipped", func(p *Proof) { p.Existence = false }},
		{"key bit", func(p *Proof) { p.Key[0] ^= 0x01 }},
		{"node key bit", func(p *Proof) { p.NodeKey[31] ^= 0x01 }},
		{"left digest bit", func(p *Proof) { p.LeftDigest[0] ^= 0x80 }},
		{"right digest bit", func(p *Proof) { p.RightDigest[0] ^= 0x80 }},
		{"step key bit", func(p *Proof) { p.Steps[0].Key[5] ^= 0x10 }},
		{"step digest bit", func(p *Proof) { p.Steps[len(p.Steps)-1].Other[5] ^= 0x10 }},
		{"step direction flipped", func(p *Proof) { p.Steps[0].Right = !p.Steps[0].Right }},
		{"first step dropped", func(p *Proof) { p.Steps = p.Steps[1:] }},
		{"last step dropped", func(p *Proof) { p.Steps = p.Steps[:len(p.Steps)-1] }},
		{"steps swapped", func(p *Proof) { p.Steps[0], p.Steps[1] = p.Steps[1], p.Steps[0] }},
		{"step duplicated", func(p *Proof) { p.Steps = append(p.Steps, p.Steps[len(p.Steps)-1]) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := cloneProof(proof)
			tc.mutate(p)
			ok, err := tr.VerifyProof(root, key, p)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

// TestVerifyProofForgedPath makes sure a proof can't borrow the steps and
// the terminal node of another key's genuine proof. The fold alone can't
// catch this, the combine is commutative in its children, so the check
// relies on every visited key staying inside the search interval for the
// proven key.
func TestVerifyProofForgedPath(t *testing.T) {
	keys := randomKeys(16)
	tr := newTestTree(t, keys...)
	root := tr.Root()

	for _, present := range keys {
		for _, donor := range keys {
			if present.Equals(donor) {
				continue
			}
			forged := cloneProof(tr.GetProof(donor))
			forged.Key = present
			forged.Existence = false

			ok, err := tr.VerifyProof(root, present, forged)
			require.NoError(t, err)
			require.False(t, ok, "forged non-membership of %s via %s", present, donor)
		}
	}

	absent := random.Uint256()
	for _, donor := range keys {
		forged := cloneProof(tr.GetProof(donor))
		forged.Key = absent
		forged.Existence = true

		ok, err := tr.VerifyProof(root, absent, forged)
		require.NoError(t, err)
		require.False(t, ok, "forged membership of %s via %s", absent, donor)
	}
}

func TestVerifyProofLengthBound(t *testing.T) {
	keys := randomKeys(128)
	tr := newTestTree(t, keys...)

	var deepest *Proof
	for _, k := range keys {
		if p := tr.GetProof(k); deepest == nil || len(p.Steps) > len(deepest.Steps) {
			deepest = p
		}
	}
	require.Greater(t, len(deepest.Steps), 1)

	ok, err := VerifyProof(hash.Sha256, 1, tr.Root(), deepest.Key, deepest)
	require.ErrorIs(t, err, ErrProofTooLong)
	require.False(t, ok)

	ok, err = VerifyProof(hash.Sha256, len(deepest.Steps), tr.Root(), deepest.Key, deepest)
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("bound configured on the tree", func(t *testing.T) {
		short := New(nil, 1)
		for _, k := range keys[:16] {
			require.NoError(t, short.Insert(k))
		}
		var deep *Proof
		for _, k := range keys[:16] {
			if p := short.GetProof(k); deep == nil || len(p.Steps) > len(deep.Steps) {
				deep = p
			}
		}
		_, err := short.VerifyProof(short.Root(), deep.Key, deep)
		require.ErrorIs(t, err, ErrProofTooLong)
	})
	t.Run("nil proof", func(t *testing.T) {
		_, err := tr.VerifyProof(tr.Root(), keys[0], nil)
		require.ErrorIs(t, err, ErrMalformedProof)
	})
}

func TestProofSerdes(t *testing.T) {
	keys := randomKeys(32)
	tr := newTestTree(t, keys...)

	proofs := map[string]*Proof{
		"membership":     tr.GetProof(keys[0]),
		"non-membership": tr.GetProof(random.Uint256()),
		"empty tree":     New(nil, 0).GetProof(keys[0]),
	}
	for name, p := range proofs {
		t.Run(name, func(t *testing.T) {
			testserdes.EncodeDecodeBinary(t, p, new(Proof))
			testserdes.MarshalUnmarshalJSON(t, p, new(Proof))

			restored, err := ProofFromString(p.String())
			require.NoError(t, err)
			require.Equal(t, p, restored)
		})
	}
}

func TestProofFromBytesMalformed(t *testing.T) {
	keys := randomKeys(16)
	tr := newTestTree(t, keys...)

	var valid []byte
	for _, k := range keys {
		if p := tr.GetProof(k); len(p.Steps) > 0 {
			valid = p.Bytes()
			break
		}
	}
	require.NotEmpty(t, valid)

	unknownFlags := append([]byte{}, valid...)
	unknownFlags[0] |= 0x80

	bothFlags := append([]byte{flagExistence | flagEmptyTree}, make([]byte, util.Uint256Size)...)

	hugeCount := append([]byte{0}, make([]byte, util.Uint256Size*4)...)
	hugeCount = append(hugeCount, 0xfe, 0x00, 0x00, 0x01, 0x00)

	cases := map[string][]byte{
		"empty input":        {},
		"flags only":         valid[:1],
		"truncated key":      valid[:17],
		"truncated terminal": valid[:1+util.Uint256Size*2],
		"truncated step":     valid[:len(valid)-1],
		"trailing byte":      append(append([]byte{}, valid...), 0x00),
		"unknown flags":      unknownFlags,
		"conflicting flags":  bothFlags,
		"absurd step count":  hugeCount,
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ProofFromBytes(b)
			require.ErrorIs(t, err, ErrMalformedProof)
		})
	}

	t.Run("bad base64", func(t *testing.T) {
		_, err := ProofFromString("not@base64")
		require.ErrorIs(t, err, ErrMalformedProof)
	})
	t.Run("bad json", func(t *testing.T) {
		require.Error(t, new(Proof).UnmarshalJSON([]byte(`123`)))
	})
}

func TestProofLifecycle(t *testing.T) {
	alice := hash.Sha256([]byte("alice"))
	bob := hash.Sha256([]byte("bob"))
	carol := hash.Sha256([]byte("carol"))
	dave := hash.Sha256([]byte("dave"))

	tr := newTestTree(t, alice, bob, carol)
	reordered := newTestTree(t, carol, alice, bob)
	require.Equal(t, tr.Root(), reordered.Root())

	root := tr.Root()
	bobProof := tr.GetProof(bob)
	daveProof := tr.GetProof(dave)
	require.True(t, bobProof.Existence)
	require.False(t, daveProof.Existence)

	for _, p := range []*Proof{bobProof, daveProof} {
		ok, err := tr.VerifyProof(root, p.Key, p)
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.NoError(t, tr.Insert(dave))
	newRoot := tr.Root()
	require.NotEqual(t, root, newRoot)

	// stale proofs don't carry over to the new root
	for _, p := range []*Proof{bobProof, daveProof} {
		ok, err := tr.VerifyProof(newRoot, p.Key, p)
		require.NoError(t, err)
		require.False(t, ok)

		// but they stay valid against the root they were issued for
		ok, err = tr.VerifyProof(root, p.Key, p)
		require.NoError(t, err)
		require.True(t, ok)
	}

	daveMembership := tr.GetProof(dave)
	require.True(t, daveMembership.Existence)
	ok, err := tr.VerifyProof(newRoot, dave, daveMembership)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, tr.Remove(dave))
	require.Equal(t, root, tr.Root())
}
