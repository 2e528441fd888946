package session

import (
	"testing"

	"github.com/Adiao1973/mcprotocol-go/protocol"
)

func TestLifecycleHappyPath(t *testing.T) {
	s := New(protocol.RoleServer)

	if s.State() != Uninitialized {
		t.Fatalf("got %s want uninitialized", s.State())
	}
	if err := s.BeginInitialize(); err != nil {
		t.Fatalf("begin initialize: %v", err)
	}
	if err := s.CompleteInitialize(protocol.ImplementationInfo{Name: "peer", Version: "1.0"}, nil, protocol.ProtocolVersion); err != nil {
		t.Fatalf("complete initialize: %v", err)
	}
	if s.State() != Active {
		t.Fatalf("got %s want active", s.State())
	}
	if err := s.BeginShutdown(); err != nil {
		t.Fatalf("begin shutdown: %v", err)
	}
	if err := s.CompleteExit(); err != nil {
		t.Fatalf("complete exit: %v", err)
	}
	if s.State() != Exited {
		t.Fatalf("got %s want exited", s.State())
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	s := New(protocol.RoleClient)
	if err := s.BeginShutdown(); err == nil {
		t.Fatal("expected error shutting down from uninitialized")
	}
}

func TestVersionMismatchAbortsInitializing(t *testing.T) {
	s := New(protocol.RoleClient)
	if err := s.BeginInitialize(); err != nil {
		t.Fatalf("begin initialize: %v", err)
	}
	if err := s.AbortInitialize(); err != nil {
		t.Fatalf("abort initialize: %v", err)
	}
	if s.State() != Uninitialized {
		t.Fatalf("got %s want uninitialized after abort", s.State())
	}
}

func TestRequestIDUniquenessAcrossTypes(t *testing.T) {
	s := New(protocol.RoleServer)

	if dup := s.RecordRequestID(protocol.NewIntID(1)); dup {
		t.Fatal("first use of id 1 reported as duplicate")
	}
	if dup := s.RecordRequestID(protocol.NewStringID("1")); !dup {
		t.Fatal("string \"1\" should collide with int 1")
	}
	if dup := s.RecordRequestID(protocol.NewIntID(2)); dup {
		t.Fatal("id 2 incorrectly reported as duplicate")
	}
}
