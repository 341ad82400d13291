package cmt

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nspcc-dev/cmtree/pkg/crypto/hash"
	"github.com/nspcc-dev/cmtree/pkg/io"
	"github.com/nspcc-dev/cmtree/pkg/util"
)

// ErrMalformedProof is returned when a proof can't even be decoded into a
// structurally sound form. It is distinct from a well-formed proof that
// fails verification: the latter makes VerifyProof return false without
// an error.
var ErrMalformedProof = errors.New("malformed proof")

// ErrProofTooLong is returned by VerifyProof when the proof carries more
// steps than the verifier is configured to accept.
var ErrProofTooLong = errors.New("proof is too long")

// maxProofSteps bounds the step count on decoding. It is far above any
// height an honest tree can reach, verifiers apply their configured bound
// on top of it.
const maxProofSteps = 65535

// Serialized proof flag bits.
const (
	flagExistence = 1 << iota
	flagEmptyTree
)

// ProofStep records one node visited on the way from the root towards the
// proven key: the node's key, the digest of the child the search did not
// take and the direction taken (Right is true when the search continued
// into the right child, i.e. when the proven key is greater than Key).
type ProofStep struct {
	Key   util.Uint256
	Other util.Uint256
	Right bool
}

// EncodeBinary implements the io.Serializable interface.
func (s *ProofStep) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(s.Key[:])
	w.WriteBytes(s.Other[:])
	w.WriteBool(s.Right)
}

// DecodeBinary implements the io.Serializable interface.
func (s *ProofStep) DecodeBinary(r *io.BinReader) {
	r.ReadBytes(s.Key[:])
	r.ReadBytes(s.Other[:])
	s.Right = r.ReadBool()
}

// Proof attests that Key is (Existence true) or is not (Existence false)
// in the key set committed to by some root digest. Steps are ordered from
// the root towards the key. The terminal node described by NodeKey,
// LeftDigest and RightDigest is the proven node itself for membership
// proofs and the node whose key-side child slot is empty for
// non-membership proofs. Empty is set on proofs requested from an empty
// tree, such proofs verify only against the zero root.
//
// A Proof is a plain value, it carries no reference to the tree that
// produced it.
type Proof struct {
	Key       util.Uint256
	Existence bool
	Empty     bool
	Steps     []ProofStep

	NodeKey     util.Uint256
	LeftDigest  util.Uint256
	RightDigest util.Uint256
}

// GetProof builds a membership proof for a key that is in the tree or a
// non-membership proof for a key that is not. It never fails, a proof
// against an empty tree has Empty set and trivially proves
// non-membership.
func (t *Tree) GetProof(key util.Uint256) *Proof {
	p := &Proof{Key: key}
	if t.root == nil {
		p.Empty = true
		return p
	}
	n := t.root
	for {
		c := key.CompareTo(n.key)
		if c == 0 {
			p.Existence = true
			break
		}
		next, other := n.left, childDigest(n.right)
		if c > 0 {
			next, other = n.right, childDigest(n.left)
		}
		if next == nil {
			break
		}
		p.Steps = append(p.Steps, ProofStep{Key: n.key, Other: other, Right: c > 0})
		n = next
	}
	p.NodeKey = n.key
	p.LeftDigest = childDigest(n.left)
	p.RightDigest = childDigest(n.right)
	return p
}

// VerifyProof checks p against the given root digest and key using the
// tree's hash function and configured proof length bound.
func (t *Tree) VerifyProof(root, key util.Uint256, p *Proof) (bool, error) {
	return VerifyProof(t.hashFunc, t.maxProofLen, root, key, p)
}

// VerifyProof checks p against the given root digest and key. It is a
// pure function of its arguments and touches no tree: h is the hash
// function the tree was built with (nil selects hash.Sha256) and maxLen
// bounds the accepted step count (non-positive selects
// DefaultMaxProofLen).
//
// A well-formed proof that does not hold returns (false, nil). An error is
// returned only when the proof exceeds maxLen (ErrProofTooLong) or is
// structurally impossible (ErrMalformedProof).
func VerifyProof(h hash.Func, maxLen int, root, key util.Uint256, p *Proof) (bool, error) {
	if h == nil {
		h = hash.Sha256
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxProofLen
	}
	if p == nil {
		return false, fmt.Errorf("%w: missing proof", ErrMalformedProof)
	}
	if len(p.Steps) > maxLen {
		return false, fmt.Errorf("%w: %d steps with %d allowed", ErrProofTooLong, len(p.Steps), maxLen)
	}
	if p.Empty {
		if p.Existence || len(p.Steps) != 0 || !p.NodeKey.Equals(util.Uint256{}) ||
			!p.LeftDigest.Equals(util.Uint256{}) || !p.RightDigest.Equals(util.Uint256{}) {
			return false, fmt.Errorf("%w: non-trivial empty-tree proof", ErrMalformedProof)
		}
		return key.Equals(p.Key) && root.Equals(util.Uint256{}), nil
	}
	if !key.Equals(p.Key) {
		return false, nil
	}

	// Every visited key must stay inside the search interval implied by
	// the turns above it. Without this check a proof could fold a path
	// that is not the search path for the key and still reach the root,
	// because the commutative combine does not commit to child sides.
	var lower, upper *util.Uint256
	inBounds := func(k util.Uint256) bool {
		return (lower == nil || k.CompareTo(*lower) > 0) &&
			(upper == nil || k.CompareTo(*upper) < 0)
	}
	for i := range p.Steps {
		s := &p.Steps[i]
		if !inBounds(s.Key) {
			return false, nil
		}
		switch c := key.CompareTo(s.Key); {
		case c == 0:
			// the proven key can only be the terminal node
			return false, nil
		case (c > 0) != s.Right:
			// the direction tag disagrees with the key order
			return false, nil
		}
		if s.Right {
			lower = &s.Key
		} else {
			upper = &s.Key
		}
	}
	if !inBounds(p.NodeKey) {
		return false, nil
	}

	if p.Existence {
		if !p.NodeKey.Equals(key) {
			return false, nil
		}
	} else {
		switch c := key.CompareTo(p.NodeKey); {
		case c == 0:
			return false, nil
		case c < 0 && !p.LeftDigest.Equals(util.Uint256{}):
			// the search for the key would have continued left
			return false, nil
		case c > 0 && !p.RightDigest.Equals(util.Uint256{}):
			return false, nil
		}
	}

	current := hash.Combine3(h, p.NodeKey, p.LeftDigest, p.RightDigest)
	for i := len(p.Steps) - 1; i >= 0; i-- {
		current = hash.Combine3(h, p.Steps[i].Key, current, p.Steps[i].Other)
	}
	return current.Equals(root), nil
}

// EncodeBinary implements the io.Serializable interface.
func (p *Proof) EncodeBinary(w *io.BinWriter) {
	var flags byte
	if p.Existence {
		flags |= flagExistence
	}
	if p.Empty {
		flags |= flagEmptyTree
	}
	w.WriteB(flags)
	w.WriteBytes(p.Key[:])
	if p.Empty {
		return
	}
	w.WriteBytes(p.NodeKey[:])
	w.WriteBytes(p.LeftDigest[:])
	w.WriteBytes(p.RightDigest[:])
	w.WriteVarUint(uint64(len(p.Steps)))
	for i := range p.Steps {
		p.Steps[i].EncodeBinary(w)
	}
}

// DecodeBinary implements the io.Serializable interface.
func (p *Proof) DecodeBinary(r *io.BinReader) {
	flags := r.ReadB()
	if flags&^(flagExistence|flagEmptyTree) != 0 {
		r.Err = fmt.Errorf("%w: unknown flags %#x", ErrMalformedProof, flags)
		return
	}
	p.Existence = flags&flagExistence != 0
	p.Empty = flags&flagEmptyTree != 0
	r.ReadBytes(p.Key[:])
	p.Steps = nil
	p.NodeKey, p.LeftDigest, p.RightDigest = util.Uint256{}, util.Uint256{}, util.Uint256{}
	if p.Empty {
		if p.Existence && r.Err == nil {
			r.Err = fmt.Errorf("%w: existence proof against an empty tree", ErrMalformedProof)
		}
		return
	}
	r.ReadBytes(p.NodeKey[:])
	r.ReadBytes(p.LeftDigest[:])
	r.ReadBytes(p.RightDigest[:])
	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if n > maxProofSteps {
		r.Err = fmt.Errorf("%w: %d steps", ErrMalformedProof, n)
		return
	}
	if n == 0 {
		return
	}
	p.Steps = make([]ProofStep, n)
	for i := range p.Steps {
		p.Steps[i].DecodeBinary(r)
	}
}

// Bytes returns the serialized form of the proof.
func (p *Proof) Bytes() []byte {
	buf := io.NewBufBinWriter()
	buf.Grow(1 + util.Uint256Size*4 + len(p.Steps)*(util.Uint256Size*2+1))
	p.EncodeBinary(buf.BinWriter)
	return buf.Bytes()
}

// String returns the base64 encoding of the serialized proof.
func (p *Proof) String() string {
	return base64.StdEncoding.EncodeToString(p.Bytes())
}

// ProofFromBytes decodes a serialized proof. The input must be consumed
// exactly, trailing bytes make the proof malformed.
func ProofFromBytes(b []byte) (*Proof, error) {
	p := new(Proof)
	br := io.NewBinReaderFromBuf(b)
	p.DecodeBinary(br)
	if br.Err != nil {
		if errors.Is(br.Err, ErrMalformedProof) {
			return nil, br.Err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, br.Err)
	}
	_ = br.ReadB()
	if br.Err == nil {
		return nil, fmt.Errorf("%w: additional data after the proof", ErrMalformedProof)
	}
	return p, nil
}

// ProofFromString decodes a proof from the base64 form produced by
// String.
func ProofFromString(s string) (*Proof, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	return ProofFromBytes(b)
}

// MarshalJSON implements the json.Marshaler interface. The proof is
// represented by the base64 encoding of its binary form.
func (p *Proof) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (p *Proof) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	res, err := ProofFromString(s)
	if err != nil {
		return err
	}
	*p = *res
	return nil
}
