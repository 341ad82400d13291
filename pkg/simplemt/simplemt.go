// Package simplemt keeps an append-only index of integer values in a
// fixed-depth sparse Merkle tree. It complements the main key set: where
// the key set proves membership of opaque keys, this index proves that a
// value sits at a particular position. Unlike the key set it has a fixed
// capacity of 2^depth entries and no removal.
package simplemt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/iden3/go-merkletree-sql/v2"
	"github.com/iden3/go-merkletree-sql/v2/db/memory"
)

// MaxDepth bounds the configured tree depth.
const MaxDepth = 64

// ErrTreeFull is returned by Add when all leaf slots are taken.
var ErrTreeFull = errors.New("tree is full")

// ErrNoValue is returned by Get and Prove for indexes nothing was added
// at.
var ErrNoValue = errors.New("no value at the given index")

// Tree is an append-only Merkle index of big integer values. It is safe
// for concurrent use.
type Tree struct {
	mtx  sync.Mutex
	mt   *merkletree.MerkleTree
	next int64
	cap  int64
}

// New creates an empty in-memory tree of the given depth.
func New(ctx context.Context, depth int) (*Tree, error) {
	if depth <= 0 || depth > MaxDepth {
		return nil, fmt.Errorf("invalid depth %d: must be in range [1, %d]", depth, MaxDepth)
	}
	// The underlying tree counts the leaf level as well, one extra level
	// is needed to fit all the 2^depth index paths.
	mt, err := merkletree.NewMerkleTree(ctx, memory.NewMemoryStorage(), depth+1)
	if err != nil {
		return nil, err
	}
	var capacity int64 = math.MaxInt64
	if depth < 63 {
		capacity = 1 << depth
	}
	return &Tree{mt: mt, cap: capacity}, nil
}

// Add appends the value at the next free index and returns that index.
// The value must be a valid field element of the underlying hash.
func (t *Tree) Add(ctx context.Context, value *big.Int) (int64, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.next >= t.cap {
		return 0, ErrTreeFull
	}
	if err := t.mt.Add(ctx, big.NewInt(t.next), value); err != nil {
		return 0, err
	}
	t.next++
	return t.next - 1, nil
}

// Get returns the value stored at the given index.
func (t *Tree) Get(ctx context.Context, index int64) (*big.Int, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if index < 0 || index >= t.next {
		return nil, ErrNoValue
	}
	_, value, err := t.prove(ctx, index)
	return value, err
}

// Prove builds a membership proof for the value at the given index.
func (t *Tree) Prove(ctx context.Context, index int64) (*merkletree.Proof, *big.Int, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if index < 0 || index >= t.next {
		return nil, nil, ErrNoValue
	}
	return t.prove(ctx, index)
}

func (t *Tree) prove(ctx context.Context, index int64) (*merkletree.Proof, *big.Int, error) {
	proof, value, err := t.mt.GenerateProof(ctx, big.NewInt(index), t.mt.Root())
	if err != nil {
		return nil, nil, err
	}
	if !proof.Existence {
		return nil, nil, ErrNoValue
	}
	return proof, value, nil
}

// Root returns the current root of the tree.
func (t *Tree) Root() *merkletree.Hash {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.mt.Root()
}

// Size returns the number of values added so far.
func (t *Tree) Size() int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.next
}

// Verify checks a proof produced by Prove against the given root, index
// and value. It needs no tree and can be run by any third party.
func Verify(root *merkletree.Hash, proof *merkletree.Proof, index int64, value *big.Int) bool {
	return merkletree.VerifyProof(root, proof, big.NewInt(index), value)
}
