package rpcclient

import (
	"errors"
	"math/big"

	"github.com/nspcc-dev/cmtree/pkg/cmt"
	"github.com/nspcc-dev/cmtree/pkg/rpc/result"
	"github.com/nspcc-dev/cmtree/pkg/util"
)

// GetVersion returns the version and the tree parameters of the server.
func (c *Client) GetVersion() (*result.Version, error) {
	var resp = &result.Version{}
	if err := c.performRequest("getversion", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetRoot returns the current root of the key set along with its size.
func (c *Client) GetRoot() (*result.Root, error) {
	var resp = &result.Root{}
	if err := c.performRequest("getroot", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetSize returns the number of keys in the set.
func (c *Client) GetSize() (int, error) {
	var resp int
	if err := c.performRequest("getsize", nil, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// HasKey checks for the key presence in the set.
func (c *Client) HasKey(key util.Uint256) (bool, error) {
	var resp bool
	if err := c.performRequest("haskey", []interface{}{key}, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// InsertKey adds the key to the set and returns the new root.
func (c *Client) InsertKey(key util.Uint256) (*result.KeyUpdate, error) {
	var resp = &result.KeyUpdate{}
	if err := c.performRequest("insertkey", []interface{}{key}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RemoveKey removes the key from the set and returns the new root.
func (c *Client) RemoveKey(key util.Uint256) (*result.KeyUpdate, error) {
	var resp = &result.KeyUpdate{}
	if err := c.performRequest("removekey", []interface{}{key}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// InsertAddress adds the key behind the given address to the set.
func (c *Client) InsertAddress(addr string) (*result.KeyUpdate, error) {
	var resp = &result.KeyUpdate{}
	if err := c.performRequest("insertaddress", []interface{}{addr}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RemoveAddress removes the key behind the given address from the set.
func (c *Client) RemoveAddress(addr string) (*result.KeyUpdate, error) {
	var resp = &result.KeyUpdate{}
	if err := c.performRequest("removeaddress", []interface{}{addr}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetProof returns a membership (or non-membership) proof for the key
// against the current root.
func (c *Client) GetProof(key util.Uint256) (*result.GetProof, error) {
	var resp = &result.GetProof{}
	if err := c.performRequest("getproof", []interface{}{key}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// VerifyProof checks the proof for the key against the given root on the
// server side. VerifyProof in the cmt package does the same locally.
func (c *Client) VerifyProof(root, key util.Uint256, proof *cmt.Proof) (bool, error) {
	if proof == nil {
		return false, errors.New("nil proof")
	}
	var resp = &result.VerifyProof{}
	if err := c.performRequest("verifyproof", []interface{}{root, key, proof.String()}, resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// ValidateAddress verifies that the address is a correct tree service
// address.
func (c *Client) ValidateAddress(addr string) error {
	var resp = &result.ValidateAddress{}
	if err := c.performRequest("validateaddress", []interface{}{addr}, resp); err != nil {
		return err
	}
	if !resp.IsValid {
		return errors.New("validateaddress returned false")
	}
	return nil
}

// SimpleAdd appends the value to the simple value index.
func (c *Client) SimpleAdd(value *big.Int) (*result.SimpleValue, error) {
	var resp = &result.SimpleValue{}
	if err := c.performRequest("simpleadd", []interface{}{value.String()}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SimpleGet returns the value of the simple index at the given position.
func (c *Client) SimpleGet(index int64) (*result.SimpleValue, error) {
	var resp = &result.SimpleValue{}
	if err := c.performRequest("simpleget", []interface{}{index}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SimpleRoot returns the root and the size of the simple value index.
func (c *Client) SimpleRoot() (*result.SimpleRoot, error) {
	var resp = &result.SimpleRoot{}
	if err := c.performRequest("simpleroot", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SimpleProof returns a membership proof for the simple index value at the
// given position.
func (c *Client) SimpleProof(index int64) (*result.SimpleProof, error) {
	var resp = &result.SimpleProof{}
	if err := c.performRequest("simpleproof", []interface{}{index}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
