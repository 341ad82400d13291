package cmt

import (
	"github.com/nspcc-dev/cmtree/pkg/crypto/hash"
	"github.com/nspcc-dev/cmtree/pkg/util"
)

// node is a single tree node. Its place in the tree is fully determined by
// its key: search order on key bytes, heap order on the key's hash. Both
// children are owned exclusively by the node, nil stands for an empty
// subtree.
type node struct {
	key      util.Uint256
	priority util.Uint256
	digest   util.Uint256

	left  *node
	right *node
}

// newNode creates a leaf node for the given key. The priority is cached,
// it never changes for the node's lifetime.
func newNode(key util.Uint256, h hash.Func) *node {
	n := &node{
		key:      key,
		priority: h(key[:]),
	}
	n.updateDigest(h)
	return n
}

// childDigest returns the commitment of the given child, the zero digest
// for an empty one.
func childDigest(n *node) util.Uint256 {
	if n == nil {
		return util.Uint256{}
	}
	return n.digest
}

// updateDigest recomputes the node commitment from its key and children.
// It must be called after every structural change, children first.
func (n *node) updateDigest(h hash.Func) {
	n.digest = hash.Combine3(h, n.key, childDigest(n.left), childDigest(n.right))
}

// outranks reports whether n must be above other in the heap. Priority
// ties are broken by key order, so the tree shape stays deterministic even
// if the priority hash collides.
func (n *node) outranks(other *node) bool {
	switch c := n.priority.CompareTo(other.priority); {
	case c != 0:
		return c > 0
	default:
		return n.key.CompareTo(other.key) > 0
	}
}

// rotateRight rotates the subtree rooted at n to the right and returns the
// new subtree root (the former left child). Digests of the two moved nodes
// are refreshed in child-first order.
func rotateRight(n *node, h hash.Func) *node {
	x := n.left
	n.left = x.right
	x.right = n
	n.updateDigest(h)
	x.updateDigest(h)
	return x
}

// rotateLeft is the mirror image of rotateRight.
func rotateLeft(n *node, h hash.Func) *node {
	x := n.right
	n.right = x.left
	x.left = n
	n.updateDigest(h)
	x.updateDigest(h)
	return x
}
