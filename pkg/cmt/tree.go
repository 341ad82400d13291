// Package cmt implements a Cartesian Merkle tree, an authenticated set of
// fixed-width keys.
//
// The tree is a treap: a binary search tree on key bytes that also keeps
// max-heap order on node priorities. Priorities are derived from keys by
// hashing, so the shape of the tree (and therefore the root digest) is a
// pure function of the key set, whatever the order of insertions and
// removals that produced it. Every node carries a Merkle commitment built
// with a commutative combine, letting short proofs attest both membership
// and non-membership of a key against a root digest alone.
package cmt

import (
	"errors"

	"github.com/nspcc-dev/cmtree/pkg/crypto/hash"
	"github.com/nspcc-dev/cmtree/pkg/util"
)

// DefaultMaxProofLen is the maximum number of proof steps accepted by
// verifiers unless configured otherwise. A tree has to hold on the order
// of 2^64 keys before honest proofs outgrow it.
const DefaultMaxProofLen = 64

// ErrDuplicateKey is returned by Insert when the key is already in the tree.
var ErrDuplicateKey = errors.New("key is already in the tree")

// ErrKeyNotFound is returned by Remove when the key is not in the tree.
var ErrKeyNotFound = errors.New("key is not in the tree")

// Tree is a Cartesian Merkle tree. The zero digest commits to an empty
// tree.
//
// Tree is not safe for concurrent use: callers must serialize mutations
// and keep reads exclusive with them. VerifyProof needs no tree and no
// locking at all.
type Tree struct {
	hashFunc    hash.Func
	maxProofLen int

	root *node
	size int
}

// New creates an empty tree. A nil hash function selects hash.Sha256, a
// non-positive maxProofLen selects DefaultMaxProofLen. The hash function
// is fixed for the tree's lifetime, digests produced with one function are
// not verifiable with another.
func New(h hash.Func, maxProofLen int) *Tree {
	if h == nil {
		h = hash.Sha256
	}
	if maxProofLen <= 0 {
		maxProofLen = DefaultMaxProofLen
	}
	return &Tree{
		hashFunc:    h,
		maxProofLen: maxProofLen,
	}
}

// Root returns the digest committing to the current key set, the zero
// Uint256 for an empty tree.
func (t *Tree) Root() util.Uint256 {
	if t.root == nil {
		return util.Uint256{}
	}
	return t.root.digest
}

// Size returns the number of keys in the tree.
func (t *Tree) Size() int {
	return t.size
}

// Has returns true if the key is in the tree.
func (t *Tree) Has(key util.Uint256) bool {
	n := t.root
	for n != nil {
		switch c := key.CompareTo(n.key); {
		case c == 0:
			return true
		case c < 0:
			n = n.left
		default:
			n = n.right
		}
	}
	return false
}

// Insert adds the key to the tree. It fails with ErrDuplicateKey if an
// equal key is already present, leaving the tree untouched.
func (t *Tree) Insert(key util.Uint256) error {
	if t.Has(key) {
		return ErrDuplicateKey
	}
	t.root = t.insertInto(t.root, newNode(key, t.hashFunc))
	t.size++
	return nil
}

// insertInto descends to the insertion point in search order and rebuilds
// the path on unwind: the new node is rotated up for as long as it
// outranks its parent, digests are refreshed at every changed node.
func (t *Tree) insertInto(curr, n *node) *node {
	if curr == nil {
		return n
	}
	if n.key.CompareTo(curr.key) < 0 {
		curr.left = t.insertInto(curr.left, n)
		if curr.left.outranks(curr) {
			curr = rotateRight(curr, t.hashFunc)
		} else {
			curr.updateDigest(t.hashFunc)
		}
	} else {
		curr.right = t.insertInto(curr.right, n)
		if curr.right.outranks(curr) {
			curr = rotateLeft(curr, t.hashFunc)
		} else {
			curr.updateDigest(t.hashFunc)
		}
	}
	return curr
}

// Remove deletes the key from the tree. It fails with ErrKeyNotFound if
// the key is not present, leaving the tree untouched.
func (t *Tree) Remove(key util.Uint256) error {
	if !t.Has(key) {
		return ErrKeyNotFound
	}
	t.root = t.removeFrom(t.root, key)
	t.size--
	return nil
}

// removeFrom locates the key in the subtree rooted at curr and removes it.
// A node with two children is first rotated below its higher-priority
// child, keeping the heap order intact, a node with at most one child is
// replaced by that child. Digests are refreshed on unwind.
func (t *Tree) removeFrom(curr *node, key util.Uint256) *node {
	switch c := key.CompareTo(curr.key); {
	case c < 0:
		curr.left = t.removeFrom(curr.left, key)
	case c > 0:
		curr.right = t.removeFrom(curr.right, key)
	default:
		if curr.left == nil {
			return curr.right
		}
		if curr.right == nil {
			return curr.left
		}
		if curr.right.outranks(curr.left) {
			curr = rotateLeft(curr, t.hashFunc)
			curr.left = t.removeFrom(curr.left, key)
		} else {
			curr = rotateRight(curr, t.hashFunc)
			curr.right = t.removeFrom(curr.right, key)
		}
	}
	curr.updateDigest(t.hashFunc)
	return curr
}
