package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Version is the JSON-RPC protocol version carried by every envelope.
const Version = "2.0"

// Kind classifies a decoded envelope by its structural shape.
type Kind int

const (
	KindInvalid Kind = iota
	KindRequest
	KindResponse
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	default:
		return "invalid"
	}
}

// Message is a single JSON-RPC 2.0 envelope. Exactly one message is
// carried per transport frame; there is no batching.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Kind reports whether the message is a request, response, or
// notification. Requests carry both an id and a method; responses
// carry an id but no method; notifications carry a method but no id.
func (m *Message) Kind() Kind {
	switch {
	case m.ID != nil && m.Method != "":
		return KindRequest
	case m.ID != nil:
		return KindResponse
	case m.Method != "":
		return KindNotification
	default:
		return KindInvalid
	}
}

// NumericID normalizes the envelope id to an int64. JSON decoding
// yields float64 for numeric ids; engine-assigned ids are always
// integers, so anything else reports false.
func (m *Message) NumericID() (int64, bool) {
	switch id := m.ID.(type) {
	case int64:
		return id, true
	case float64:
		n := int64(id)
		if float64(n) == id {
			return n, true
		}
	}
	return 0, false
}

// NewRequest builds a request envelope with marshaled params.
func NewRequest(id int64, method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: Version, ID: id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification envelope with marshaled params.
func NewNotification(method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: Version, Method: method, Params: raw}, nil
}

// NewResponse builds a success response echoing the request id.
func NewResponse(id any, result any) (*Message, error) {
	raw, err := sonic.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Message{JSONRPC: Version, ID: id, Result: raw}, nil
}

// NewErrorResponse builds an error response echoing the request id.
func NewErrorResponse(id any, code int, message string) *Message {
	return &Message{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message}}
}

// Encode serializes the envelope to its wire form.
func (m *Message) Encode() (string, error) {
	data, err := sonic.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	return string(data), nil
}

// Decode parses a wire frame into an envelope. Callers classify the
// result with Kind and drop anything invalid.
func Decode(data string) (*Message, error) {
	var msg Message
	if err := sonic.UnmarshalString(data, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := sonic.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return raw, nil
}
