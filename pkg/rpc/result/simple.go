package result

import (
	"github.com/iden3/go-merkletree-sql/v2"
)

// SimpleValue is a result of the simpleadd and simpleget calls. Value and
// Root are decimal representations of the corresponding field elements.
type SimpleValue struct {
	Index int64  `json:"index"`
	Value string `json:"value"`
	Root  string `json:"root"`
}

// SimpleRoot is a result of the simpleroot call.
type SimpleRoot struct {
	Root string `json:"root"`
	Size int64  `json:"size"`
}

// SimpleProof is a result of the simpleproof call.
type SimpleProof struct {
	Index int64             `json:"index"`
	Value string            `json:"value"`
	Root  string            `json:"root"`
	Proof *merkletree.Proof `json:"proof"`
}
