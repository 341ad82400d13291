package rpcsrv

import (
	"net/http"

	"github.com/nspcc-dev/cmtree/pkg/rpc"
)

// abstractResult is an interface which represents either single JSON-RPC 2.0 response
// or batch JSON-RPC 2.0 response.
type abstractResult interface {
	RunForErrors(f func(jsonErr *rpc.Error))
}

// abstract represents an abstract JSON-RPC 2.0 response. It is used as a
// server-side response representation.
type abstract struct {
	rpc.Header
	Error  *rpc.Error  `json:"error,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

// RunForErrors implements the abstractResult interface.
func (a abstract) RunForErrors(f func(jsonErr *rpc.Error)) {
	if a.Error != nil {
		f(a.Error)
	}
}

// abstractBatch represents an abstract JSON-RPC 2.0 batch-response.
type abstractBatch []abstract

// RunForErrors implements the abstractResult interface.
func (ab abstractBatch) RunForErrors(f func(jsonErr *rpc.Error)) {
	for _, a := range ab {
		if a.Error != nil {
			f(a.Error)
		}
	}
}

func getHTTPCodeForError(respErr *rpc.Error) int {
	var httpCode int
	switch respErr.Code {
	case rpc.ParseErrorCode:
		httpCode = http.StatusBadRequest
	case rpc.InvalidRequestCode, rpc.InvalidParamsCode:
		httpCode = http.StatusUnprocessableEntity
	case rpc.MethodNotFoundCode:
		httpCode = http.StatusMethodNotAllowed
	case rpc.InternalServerErrorCode:
		httpCode = http.StatusInternalServerError
	default:
		httpCode = http.StatusUnprocessableEntity
	}
	return httpCode
}
