package protocol

import (
	"encoding/json"
	"fmt"
)

const jsonrpcVersion = "2.0"

// Request is a JSON-RPC call that expects a Response.
type Request struct {
	ID     RequestID       `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// MarshalJSON renders the envelope with the jsonrpc version tag.
func (r Request) MarshalJSON() ([]byte, error) {
	type wire struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      RequestID       `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}
	return json.Marshal(wire{jsonrpcVersion, r.ID, r.Method, r.Params})
}

// Notification is a JSON-RPC call with no id: the sender expects no reply.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (n Notification) MarshalJSON() ([]byte, error) {
	type wire struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}
	return json.Marshal(wire{jsonrpcVersion, n.Method, n.Params})
}

// Response carries exactly one of Result or Error, never both, never
// neither.
type Response struct {
	ID     RequestID       `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	type wire struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      RequestID       `json:"id"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   *ResponseError  `json:"error,omitempty"`
	}
	return json.Marshal(wire{jsonrpcVersion, r.ID, r.Result, r.Error})
}

// SuccessResponse builds a Response carrying a result.
func SuccessResponse(id RequestID, result interface{}) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal result: %w", err)
	}
	return &Response{ID: id, Result: raw}, nil
}

// ErrorResponse builds a Response carrying an error.
func ErrorResponse(id RequestID, respErr *ResponseError) *Response {
	return &Response{ID: id, Error: respErr}
}

// InvalidVersionError reports a decoded frame whose jsonrpc field was
// missing or not "2.0". ID is the request id extracted from the frame
// when one was present (a Request- or Response-shaped frame), so the
// caller can still answer with an INVALID_REQUEST error matching that id;
// it is nil for a Notification-shaped frame, which the caller should
// simply drop rather than answer.
type InvalidVersionError struct {
	Version string
	ID      *RequestID
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("protocol: missing or unsupported jsonrpc version %q, want %q", e.Version, jsonrpcVersion)
}

// rawEnvelope is the shape every incoming frame is first decoded into, so
// the three concrete message kinds can be told apart by field presence
// before being decoded into their final type. Go has no native untagged
// union, so this peeking step replaces what a `#[serde(untagged)]` enum
// would do in the source language.
type rawEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// DecodeMessage discriminates a single JSON-RPC frame into a *Request,
// *Notification, or *Response, per the field-presence rules:
// id+method -> Request, id+(result|error) -> Response,
// method-without-id -> Notification.
func DecodeMessage(data []byte) (interface{}, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("protocol: invalid json-rpc frame: %w", err)
	}

	hasID := len(raw.ID) > 0 && string(raw.ID) != "null"

	if raw.JSONRPC != jsonrpcVersion {
		verErr := &InvalidVersionError{Version: raw.JSONRPC}
		if hasID {
			var id RequestID
			if err := json.Unmarshal(raw.ID, &id); err == nil {
				verErr.ID = &id
			}
		}
		return nil, verErr
	}
	hasMethod := raw.Method != ""
	hasResult := len(raw.Result) > 0
	hasError := raw.Error != nil

	switch {
	case hasID && hasMethod:
		var id RequestID
		if err := json.Unmarshal(raw.ID, &id); err != nil {
			return nil, fmt.Errorf("protocol: %w", err)
		}
		return &Request{ID: id, Method: raw.Method, Params: raw.Params}, nil

	case hasID && (hasResult || hasError):
		if hasResult && hasError {
			return nil, fmt.Errorf("protocol: response must not carry both result and error")
		}
		var id RequestID
		if err := json.Unmarshal(raw.ID, &id); err != nil {
			return nil, fmt.Errorf("protocol: %w", err)
		}
		return &Response{ID: id, Result: raw.Result, Error: raw.Error}, nil

	case !hasID && hasMethod:
		return &Notification{Method: raw.Method, Params: raw.Params}, nil

	default:
		return nil, fmt.Errorf("protocol: frame is neither a request, response, nor notification")
	}
}

// EncodeFrame marshals msg and appends exactly one trailing newline. It
// fails if the encoded JSON itself contains an embedded newline, since
// that would break newline-delimited framing.
func EncodeFrame(msg interface{}) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode frame: %w", err)
	}
	for _, b := range data {
		if b == '\n' {
			return nil, fmt.Errorf("protocol: encoded message contains an embedded newline")
		}
	}
	return append(data, '\n'), nil
}
