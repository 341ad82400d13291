package rpc

import (
	"fmt"
)

// Error represents JSON-RPC 2.0 error type.
type Error struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 error codes.
const (
	// ParseErrorCode is returned when the server can't parse the request.
	ParseErrorCode = -32700
	// InvalidRequestCode is returned for invalid request objects.
	InvalidRequestCode = -32600
	// MethodNotFoundCode is returned for unknown methods.
	MethodNotFoundCode = -32601
	// InvalidParamsCode is returned when the parameters don't match the
	// method.
	InvalidParamsCode = -32602
	// InternalServerErrorCode is returned for internal server errors.
	InternalServerErrorCode = -32603
)

// Service-specific error codes.
const (
	// DuplicateKeyCode is returned on an attempt to insert a key that is
	// already in the set.
	DuplicateKeyCode = -101
	// KeyNotFoundCode is returned on an attempt to remove a key that is
	// not in the set.
	KeyNotFoundCode = -102
	// MalformedProofCode is returned when a proof can't be decoded.
	MalformedProofCode = -103
	// ProofTooLongCode is returned when a proof exceeds the configured
	// length bound.
	ProofTooLongCode = -104
	// TreeFullCode is returned when the value index has no free slots.
	TreeFullCode = -105
	// NoValueCode is returned when the value index has nothing at the
	// requested position.
	NoValueCode = -106
)

var (
	// ErrInvalidParams represents a generic "Invalid params" error.
	ErrInvalidParams = NewInvalidParamsError("")
)

// NewError is an Error constructor that takes Error contents from its
// parameters.
func NewError(code int64, message string, data string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// NewParseError creates a new error with code -32700.
func NewParseError(data string) *Error {
	return NewError(ParseErrorCode, "Parse Error", data)
}

// NewInvalidRequestError creates a new error with code -32600.
func NewInvalidRequestError(data string) *Error {
	return NewError(InvalidRequestCode, "Invalid Request", data)
}

// NewMethodNotFoundError creates a new error with code -32601.
func NewMethodNotFoundError(data string) *Error {
	return NewError(MethodNotFoundCode, "Method not found", data)
}

// NewInvalidParamsError creates a new error with code -32602.
func NewInvalidParamsError(data string) *Error {
	return NewError(InvalidParamsCode, "Invalid params", data)
}

// NewInternalServerError creates a new error with code -32603.
func NewInternalServerError(data string) *Error {
	return NewError(InternalServerErrorCode, "Internal error", data)
}

// NewDuplicateKeyError creates a new error with code -101.
func NewDuplicateKeyError(data string) *Error {
	return NewError(DuplicateKeyCode, "Duplicate key", data)
}

// NewKeyNotFoundError creates a new error with code -102.
func NewKeyNotFoundError(data string) *Error {
	return NewError(KeyNotFoundCode, "Key not found", data)
}

// NewMalformedProofError creates a new error with code -103.
func NewMalformedProofError(data string) *Error {
	return NewError(MalformedProofCode, "Malformed proof", data)
}

// NewProofTooLongError creates a new error with code -104.
func NewProofTooLongError(data string) *Error {
	return NewError(ProofTooLongCode, "Proof too long", data)
}

// NewTreeFullError creates a new error with code -105.
func NewTreeFullError(data string) *Error {
	return NewError(TreeFullCode, "Tree full", data)
}

// NewNoValueError creates a new error with code -106.
func NewNoValueError(data string) *Error {
	return NewError(NoValueCode, "No value", data)
}

// WrapErrorWithData returns a copy of the given error with the specified
// data. It does not modify the source error.
func WrapErrorWithData(e *Error, data string) *Error {
	return NewError(e.Code, e.Message, data)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Data) == 0 {
		return fmt.Sprintf("%s (%d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s (%d) - %s", e.Message, e.Code, e.Data)
}

// Is implements the errors.Is interface allowing errors.Is checks against
// Error values, the comparison is based on codes only.
func (e *Error) Is(target error) bool {
	clTarget, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == clTarget.Code
}
