package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Adiao1973/mcprotocol-go/protocol"
	"github.com/Adiao1973/mcprotocol-go/transport"
)

// fakeTransport is an in-memory Transport for exercising the dispatch loop
// without a real pipe or HTTP listener, in the same spirit as the
// teacher's mock service structs.
type fakeTransport struct {
	in    chan transport.Envelope
	inErr chan error
	out   chan transport.Envelope
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:    make(chan transport.Envelope, 8),
		inErr: make(chan error, 8),
		out:   make(chan transport.Envelope, 8),
	}
}

func (f *fakeTransport) Initialize(ctx context.Context) error { return nil }

func (f *fakeTransport) Send(ctx context.Context, env transport.Envelope) error {
	f.out <- env
	return nil
}

func (f *fakeTransport) Receive(ctx context.Context) (transport.Envelope, error) {
	select {
	case env := <-f.in:
		return env, nil
	case err := <-f.inErr:
		return transport.Envelope{}, err
	case <-ctx.Done():
		return transport.Envelope{}, ctx.Err()
	}
}

func (f *fakeTransport) Close() error { return nil }

func initializeRequest(t *testing.T) *protocol.Request {
	t.Helper()
	params, err := json.Marshal(protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		ClientInfo:      protocol.ImplementationInfo{Name: "test-client", Version: "0.0.1"},
	})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return &protocol.Request{ID: protocol.NewIntID(1), Method: protocol.MethodInitialize, Params: params}
}

func runServer(t *testing.T, ft *fakeTransport) (*Server, context.CancelFunc) {
	t.Helper()
	srv := New(Info{Name: "test-server", Version: "0.0.1"}, ft, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	return srv, cancel
}

func recvResponse(t *testing.T, ft *fakeTransport) *protocol.Response {
	t.Helper()
	select {
	case env := <-ft.out:
		resp, ok := env.Message.(*protocol.Response)
		if !ok {
			t.Fatalf("expected *protocol.Response, got %T", env.Message)
		}
		return resp
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for response")
		return nil
	}
}

func TestInitializeHandshake(t *testing.T) {
	ft := newFakeTransport()
	_, cancel := runServer(t, ft)
	defer cancel()

	ft.in <- transport.Envelope{Message: initializeRequest(t)}
	resp := recvResponse(t, ft)

	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.ProtocolVersion != protocol.ProtocolVersion {
		t.Fatalf("got version %q want %q", result.ProtocolVersion, protocol.ProtocolVersion)
	}
}

func TestVersionMismatchRejected(t *testing.T) {
	ft := newFakeTransport()
	_, cancel := runServer(t, ft)
	defer cancel()

	params, _ := json.Marshal(protocol.InitializeParams{ProtocolVersion: "1999-01-01"})
	ft.in <- transport.Envelope{Message: &protocol.Request{ID: protocol.NewIntID(1), Method: protocol.MethodInitialize, Params: params}}

	resp := recvResponse(t, ft)
	if resp.Error == nil || resp.Error.Code != protocol.CodeInvalidRequest {
		t.Fatalf("expected invalid request error, got %#v", resp.Error)
	}
}

func TestMethodNotFoundBeforeRegistration(t *testing.T) {
	ft := newFakeTransport()
	_, cancel := runServer(t, ft)
	defer cancel()

	ft.in <- transport.Envelope{Message: initializeRequest(t)}
	recvResponse(t, ft)

	ft.in <- transport.Envelope{Message: &protocol.Request{ID: protocol.NewIntID(2), Method: "tools/call"}}
	resp := recvResponse(t, ft)
	if resp.Error == nil || resp.Error.Code != protocol.CodeMethodNotFound {
		t.Fatalf("expected method not found, got %#v", resp.Error)
	}
}

func TestRegisteredHandlerIsInvoked(t *testing.T) {
	ft := newFakeTransport()
	srv := New(Info{Name: "test-server", Version: "0.0.1"}, ft, nil)
	srv.RegisterHandler("tools/list", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return map[string]interface{}{"tools": []string{}}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	ft.in <- transport.Envelope{Message: initializeRequest(t)}
	recvResponse(t, ft)

	ft.in <- transport.Envelope{Message: &protocol.Request{ID: protocol.NewIntID(2), Method: "tools/list"}}
	resp := recvResponse(t, ft)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
}

func TestRequestBeforeInitializeIsRejected(t *testing.T) {
	ft := newFakeTransport()
	srv := New(Info{Name: "test-server", Version: "0.0.1"}, ft, nil)
	srv.RegisterHandler("tools/list", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return map[string]interface{}{}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	ft.in <- transport.Envelope{Message: &protocol.Request{ID: protocol.NewIntID(1), Method: "tools/list"}}
	resp := recvResponse(t, ft)
	if resp.Error == nil || resp.Error.Code != protocol.CodeServerNotInitialized {
		t.Fatalf("expected server-not-initialized, got %#v", resp.Error)
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	ft := newFakeTransport()
	srv := New(Info{Name: "test-server", Version: "0.0.1"}, ft, nil)
	srv.RegisterHandler("tools/call", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		panic("boom")
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	ft.in <- transport.Envelope{Message: initializeRequest(t)}
	recvResponse(t, ft)

	ft.in <- transport.Envelope{Message: &protocol.Request{ID: protocol.NewIntID(2), Method: "tools/call"}}
	resp := recvResponse(t, ft)
	if resp.Error == nil || resp.Error.Code != protocol.CodeInternalError {
		t.Fatalf("expected internal error from recovered panic, got %#v", resp.Error)
	}
}

func TestMissingJSONRPCVersionWithIDGetsInvalidRequestResponse(t *testing.T) {
	ft := newFakeTransport()
	_, cancel := runServer(t, ft)
	defer cancel()

	id := protocol.NewIntID(7)
	ft.inErr <- transport.NewError("receive", &protocol.InvalidVersionError{Version: "1.0", ID: &id})

	resp := recvResponse(t, ft)
	if resp.Error == nil || resp.Error.Code != protocol.CodeInvalidRequest {
		t.Fatalf("expected invalid request error, got %#v", resp.Error)
	}
	if resp.ID.Canonical() != id.Canonical() {
		t.Fatalf("expected response id %s, got %s", id.Canonical(), resp.ID.Canonical())
	}
}

func TestDuplicateRequestIDRejected(t *testing.T) {
	ft := newFakeTransport()
	_, cancel := runServer(t, ft)
	defer cancel()

	ft.in <- transport.Envelope{Message: initializeRequest(t)}
	recvResponse(t, ft)

	ft.in <- transport.Envelope{Message: initializeRequest(t)}
	resp := recvResponse(t, ft)
	if resp.Error == nil || resp.Error.Code != protocol.CodeInvalidRequest {
		t.Fatalf("expected duplicate-id rejection, got %#v", resp.Error)
	}
}
