package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestRequestIDRejectsNullFloatObjectArray(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"null", `null`},
		{"float", `1.5`},
		{"object", `{"a":1}`},
		{"array", `[1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id RequestID
			if err := json.Unmarshal([]byte(tt.in), &id); err == nil {
				t.Fatalf("expected error decoding %s as request id", tt.in)
			}
		})
	}
}

func TestRequestIDCanonicalCollision(t *testing.T) {
	intID := NewIntID(1)
	strID := NewStringID("1")

	if intID.Canonical() != strID.Canonical() {
		t.Fatalf("expected int(1) and string(%q) to collide, got %q vs %q",
			"1", intID.Canonical(), strID.Canonical())
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	for _, id := range []RequestID{NewIntID(42), NewStringID("abc")} {
		data, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got RequestID
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Canonical() != id.Canonical() {
			t.Fatalf("round trip mismatch: got %q want %q", got.Canonical(), id.Canonical())
		}
	}
}

func TestDecodeMessageDiscriminatesByFieldPresence(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"ping"}`, "*protocol.Request", false},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/cancelled"}`, "*protocol.Notification", false},
		{"success response", `{"jsonrpc":"2.0","id":1,"result":{}}`, "*protocol.Response", false},
		{"error response", `{"jsonrpc":"2.0","id":1,"error":{"code":-32600,"message":"bad"}}`, "*protocol.Response", false},
		{"result and error both set", `{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":-32600,"message":"bad"}}`, "", true},
		{"neither request nor response nor notification", `{"jsonrpc":"2.0"}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got message %#v", msg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := ""
			switch msg.(type) {
			case *Request:
				got = "*protocol.Request"
			case *Notification:
				got = "*protocol.Notification"
			case *Response:
				got = "*protocol.Response"
			}
			if got != tt.want {
				t.Fatalf("got %s want %s", got, tt.want)
			}
		})
	}
}

func TestNotificationHasNoID(t *testing.T) {
	n := Notification{Method: MethodCancelled}
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["id"]; ok {
		t.Fatalf("notification must not carry an id, got %s", data)
	}
}

func TestEncodeFrameRejectsEmbeddedNewline(t *testing.T) {
	// A request whose params carry a literal newline byte would corrupt
	// newline-delimited framing if it were allowed through.
	req := &Request{ID: NewIntID(1), Method: "ping", Params: json.RawMessage(`"line1\nline2` + "\n" + `"`)}
	if _, err := EncodeFrame(req); err == nil {
		t.Fatalf("expected error for embedded newline")
	}
}

func TestEncodeFrameAppendsTrailingNewline(t *testing.T) {
	req := &Request{ID: NewIntID(1), Method: MethodPing}
	data, err := EncodeFrame(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data[len(data)-1] != '\n' {
		t.Fatalf("expected trailing newline, got %q", data)
	}
}

func TestDecodeMessageRejectsMissingOrWrongJSONRPCVersion(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID bool
	}{
		{"missing jsonrpc field, has id", `{"id":1,"method":"ping"}`, true},
		{"wrong jsonrpc version, has id", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, true},
		{"wrong jsonrpc version, no id", `{"jsonrpc":"1.0","method":"notifications/cancelled"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tt.input))
			if err == nil {
				t.Fatalf("expected error decoding %s", tt.input)
			}
			var verErr *InvalidVersionError
			if !errors.As(err, &verErr) {
				t.Fatalf("expected *InvalidVersionError, got %T: %v", err, err)
			}
			if tt.wantID && verErr.ID == nil {
				t.Fatalf("expected extracted id, got nil")
			}
			if !tt.wantID && verErr.ID != nil {
				t.Fatalf("expected no id, got %v", verErr.ID)
			}
		})
	}
}

func TestVersionMismatchProducesInvalidRequest(t *testing.T) {
	supported := ProtocolVersion
	requested := "2023-01-01"

	if requested == supported {
		t.Fatal("test fixture versions must differ")
	}

	respErr := NewError(CodeInvalidRequest, "unsupported protocol version", map[string]string{
		"supported": supported,
		"requested": requested,
	})
	if respErr.Code != CodeInvalidRequest {
		t.Fatalf("got code %d want %d", respErr.Code, CodeInvalidRequest)
	}
}
