// Package result contains structures returned by the RPC server methods.
package result

// Version holds the version of the server along with the tree parameters
// it runs with.
type Version struct {
	UserAgent       string `json:"useragent"`
	HashFunction    string `json:"hashfunction"`
	MaxProofLength  int    `json:"maxprooflength"`
	SimpleTreeDepth int    `json:"simpletreedepth,omitempty"`
}
