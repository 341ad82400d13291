package cmt

import (
	"math/rand"
	"testing"

	"github.com/nspcc-dev/cmtree/internal/random"
	"github.com/nspcc-dev/cmtree/pkg/crypto/hash"
	"github.com/nspcc-dev/cmtree/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isValid checks that every node of the subtree keeps the search, heap and
// digest invariants. It is used only during testing to catch possible
// bugs.
func isValid(h hash.Func, n *node, lower, upper *util.Uint256) bool {
	if n == nil {
		return true
	}
	if lower != nil && n.key.CompareTo(*lower) <= 0 {
		return false
	}
	if upper != nil && n.key.CompareTo(*upper) >= 0 {
		return false
	}
	if !n.priority.Equals(h(n.key[:])) {
		return false
	}
	if n.left != nil && n.left.outranks(n) {
		return false
	}
	if n.right != nil && n.right.outranks(n) {
		return false
	}
	if !n.digest.Equals(hash.Combine3(h, n.key, childDigest(n.left), childDigest(n.right))) {
		return false
	}
	return isValid(h, n.left, lower, &n.key) && isValid(h, n.right, &n.key, upper)
}

func countNodes(n *node) int {
	if n == nil {
		return 0
	}
	return 1 + countNodes(n.left) + countNodes(n.right)
}

func requireValid(t *testing.T, tr *Tree) {
	require.True(t, isValid(tr.hashFunc, tr.root, nil, nil))
	require.Equal(t, tr.size, countNodes(tr.root))
}

func randomKeys(n int) []util.Uint256 {
	keys := make([]util.Uint256, n)
	for i := range keys {
		keys[i] = random.Uint256()
	}
	return keys
}

func newTestTree(t *testing.T, keys ...util.Uint256) *Tree {
	tr := New(nil, 0)
	for _, k := range keys {
		require.NoError(t, tr.Insert(k))
	}
	requireValid(t, tr)
	return tr
}

func TestNew(t *testing.T) {
	tr := New(nil, 0)
	require.Equal(t, util.Uint256{}, tr.Root())
	require.Equal(t, 0, tr.Size())
	require.False(t, tr.Has(random.Uint256()))
}

func TestTreeInsert(t *testing.T) {
	t.Run("single key", func(t *testing.T) {
		key := random.Uint256()
		tr := newTestTree(t, key)
		require.True(t, tr.Has(key))
		require.Equal(t, 1, tr.Size())
		require.NotEqual(t, util.Uint256{}, tr.Root())
	})
	t.Run("duplicate", func(t *testing.T) {
		key := random.Uint256()
		tr := newTestTree(t, key)
		root := tr.Root()

		require.ErrorIs(t, tr.Insert(key), ErrDuplicateKey)
		require.Equal(t, root, tr.Root())
		require.Equal(t, 1, tr.Size())
		requireValid(t, tr)
	})
	t.Run("many keys", func(t *testing.T) {
		keys := randomKeys(256)
		tr := newTestTree(t, keys...)
		require.Equal(t, len(keys), tr.Size())
		for _, k := range keys {
			require.True(t, tr.Has(k))
		}
	})
}

func TestTreeRemove(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		tr := newTestTree(t, randomKeys(8)...)
		root := tr.Root()

		require.ErrorIs(t, tr.Remove(random.Uint256()), ErrKeyNotFound)
		require.Equal(t, root, tr.Root())
		requireValid(t, tr)
	})
	t.Run("from empty tree", func(t *testing.T) {
		tr := New(nil, 0)
		require.ErrorIs(t, tr.Remove(random.Uint256()), ErrKeyNotFound)
	})
	t.Run("not idempotent", func(t *testing.T) {
		key := random.Uint256()
		tr := newTestTree(t, key)

		require.NoError(t, tr.Remove(key))
		require.ErrorIs(t, tr.Remove(key), ErrKeyNotFound)
		require.Equal(t, 0, tr.Size())
		require.Equal(t, util.Uint256{}, tr.Root())
	})
	t.Run("all keys", func(t *testing.T) {
		keys := randomKeys(64)
		tr := newTestTree(t, keys...)
		for i, k := range keys {
			require.NoError(t, tr.Remove(k))
			require.False(t, tr.Has(k))
			require.Equal(t, len(keys)-i-1, tr.Size())
			requireValid(t, tr)
		}
		require.Equal(t, util.Uint256{}, tr.Root())
	})
}

func TestRootPermutationInvariance(t *testing.T) {
	keys := randomKeys(32)
	expected := newTestTree(t, keys...).Root()

	for i := 0; i < 5; i++ {
		shuffled := make([]util.Uint256, len(keys))
		copy(shuffled, keys)
		rand.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		tr := newTestTree(t, shuffled...)
		require.Equal(t, expected, tr.Root())
	}
}

func TestRootChangesOnEveryKey(t *testing.T) {
	tr := New(nil, 0)
	seen := map[util.Uint256]bool{tr.Root(): true}
	for _, k := range randomKeys(32) {
		require.NoError(t, tr.Insert(k))
		require.False(t, seen[tr.Root()], "the root must commit to the whole key set")
		seen[tr.Root()] = true
	}
}

func TestInsertRemoveRestoresRoot(t *testing.T) {
	keys := randomKeys(16)
	tr := newTestTree(t, keys...)
	root := tr.Root()

	extra := randomKeys(8)
	for _, k := range extra {
		require.NoError(t, tr.Insert(k))
	}
	requireValid(t, tr)
	require.NotEqual(t, root, tr.Root())

	// removal order intentionally differs from the insertion order
	for i := len(extra) - 1; i >= 0; i-- {
		require.NoError(t, tr.Remove(extra[i]))
	}
	requireValid(t, tr)
	require.Equal(t, root, tr.Root())
}

func TestConvergenceAcrossHistories(t *testing.T) {
	keys := randomKeys(20)

	direct := newTestTree(t, keys...)

	detour := New(nil, 0)
	extra := randomKeys(10)
	for i, k := range keys {
		require.NoError(t, detour.Insert(k))
		if i%2 == 0 {
			require.NoError(t, detour.Insert(extra[i/2]))
		}
	}
	for _, k := range extra {
		require.NoError(t, detour.Remove(k))
	}
	requireValid(t, detour)

	require.Equal(t, direct.Root(), detour.Root())
}

func TestHashFunctionSelection(t *testing.T) {
	keys := randomKeys(8)

	sha := New(hash.Sha256, 0)
	keccak := New(hash.Keccak256, 0)
	for _, k := range keys {
		require.NoError(t, sha.Insert(k))
		require.NoError(t, keccak.Insert(k))
	}
	requireValid(t, sha)
	requireValid(t, keccak)

	// same key set, different commitment schemes
	require.NotEqual(t, sha.Root(), keccak.Root())
}

func TestRandomizedOperations(t *testing.T) {
	tr := New(nil, 0)
	model := make(map[util.Uint256]bool)
	var present []util.Uint256

	for i := 0; i < 512; i++ {
		if len(present) == 0 || random.Int(0, 3) > 0 {
			k := random.Uint256()
			require.NoError(t, tr.Insert(k))
			model[k] = true
			present = append(present, k)
		} else {
			j := random.Int(0, len(present))
			k := present[j]
			require.NoError(t, tr.Remove(k))
			delete(model, k)
			present = append(present[:j], present[j+1:]...)
		}
		if i%64 == 0 {
			requireValid(t, tr)
		}
	}
	requireValid(t, tr)
	require.Equal(t, len(model), tr.Size())
	for k := range model {
		assert.True(t, tr.Has(k))
	}

	rebuilt := New(nil, 0)
	for k := range model {
		require.NoError(t, rebuilt.Insert(k))
	}
	require.Equal(t, tr.Root(), rebuilt.Root())
}
