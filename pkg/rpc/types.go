/*
Package rpc contains a set of types used for JSON-RPC communication with
the tree service. It defines basic request/response types as well as a set
of errors used by the service methods.
*/
package rpc

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the only JSON-RPC protocol version supported.
const JSONRPCVersion = "2.0"

type (
	// Request represents a client-side JSON-RPC request. It's generic
	// enough to be used in many JSON-RPC communication scenarios, yet at
	// the same time it's tailored for the needs of the RPC client.
	Request struct {
		// JSONRPC is the protocol version, only valid when it contains
		// JSONRPCVersion.
		JSONRPC string `json:"jsonrpc"`
		// Method is the method being called.
		Method string `json:"method"`
		// Params is a set of method-specific parameters passed to the
		// call. They can be anything as long as they can be marshaled
		// to JSON correctly and used by the method implementation on
		// the server side.
		Params []interface{} `json:"params"`
		// ID is an identifier associated with this request. JSON-RPC
		// itself allows any strings to be used for it as well, but the
		// RPC client uses numeric identifiers.
		ID uint64 `json:"id"`
	}

	// Header is a generic JSON-RPC 2.0 response header (ID and JSON-RPC
	// version).
	Header struct {
		ID      json.RawMessage `json:"id"`
		JSONRPC string          `json:"jsonrpc"`
	}

	// HeaderAndError adds an Error (that can be empty) to the Header,
	// it's used to construct type-specific responses.
	HeaderAndError struct {
		Header
		Error *Error `json:"error,omitempty"`
	}

	// Response represents a standard raw JSON-RPC 2.0
	// response: http://www.jsonrpc.org/specification#response_object.
	Response struct {
		HeaderAndError
		Result json.RawMessage `json:"result,omitempty"`
	}

	// Notification is a type used to represent wire format of events,
	// they're special in that they look like requests but they don't have
	// IDs and their "method" is actually an event name.
	Notification struct {
		JSONRPC string        `json:"jsonrpc"`
		Event   EventID       `json:"method"`
		Payload []interface{} `json:"params"`
	}
)

// EventID represents an event type happening on the tree.
type EventID byte

const (
	// InvalidEventID is an invalid event id that is the default value of
	// EventID. It's only used as an initial value similar to nil.
	InvalidEventID EventID = iota
	// RootEventID is used for new root events.
	RootEventID
	// MissedEventID notifies a client of missed events.
	MissedEventID EventID = 255
)

// String is a good old Stringer interface implementation.
func (e EventID) String() string {
	switch e {
	case RootEventID:
		return "root_changed"
	case MissedEventID:
		return "event_missed"
	default:
		return "unknown"
	}
}

// GetEventIDFromString converts an event name into an EventID if it's a
// valid one.
func GetEventIDFromString(s string) (EventID, error) {
	switch s {
	case "root_changed":
		return RootEventID, nil
	case "event_missed":
		return MissedEventID, nil
	default:
		return InvalidEventID, fmt.Errorf("invalid event name %q", s)
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (e EventID) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (e *EventID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	id, err := GetEventIDFromString(s)
	if err != nil {
		return err
	}
	*e = id
	return nil
}
