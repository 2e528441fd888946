package stdio

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Adiao1973/mcprotocol-go/protocol"
	"github.com/Adiao1973/mcprotocol-go/transport"
)

func TestServerTransportReceiveParsesRequest(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"
	st := &ServerTransport{reader: bufio.NewReader(strings.NewReader(input))}

	env, err := st.Receive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req, ok := env.Message.(*protocol.Request)
	if !ok {
		t.Fatalf("expected *protocol.Request, got %T", env.Message)
	}
	if req.Method != protocol.MethodPing {
		t.Fatalf("got method %q want %q", req.Method, protocol.MethodPing)
	}
}

func TestServerTransportReceiveEmptyReadIsClosed(t *testing.T) {
	st := &ServerTransport{reader: bufio.NewReader(strings.NewReader(""))}
	if _, err := st.Receive(context.Background()); err == nil {
		t.Fatal("expected error on EOF with no data")
	}
}

func TestServerTransportSendWritesNewlineDelimitedJSON(t *testing.T) {
	var buf bytes.Buffer
	st := &ServerTransport{writer: &buf}

	resp, err := protocol.SuccessResponse(protocol.NewIntID(1), map[string]string{"ok": "true"})
	if err != nil {
		t.Fatalf("build response: %v", err)
	}

	if err := st.Send(context.Background(), transport.Envelope{Message: resp}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatalf("expected trailing newline, got %q", buf.String())
	}
}

func TestServerTransportRejectsOversizedMessage(t *testing.T) {
	huge := strings.Repeat("a", transport.MaxMessageSize+10) + "\n"
	st := &ServerTransport{reader: bufio.NewReader(strings.NewReader(huge))}

	if _, err := st.Receive(context.Background()); err == nil {
		t.Fatal("expected error for oversized message")
	}
}

func TestServerTransportCloseIsIdempotent(t *testing.T) {
	st := NewServerTransport(DefaultServerConfig(), nil)
	if err := st.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
