package httpsse

import (
	"testing"
	"time"
)

func TestRegistryResolvesResponseToOriginatingClient(t *testing.T) {
	r := newRegistry(time.Minute)
	r.Register("client-a", 10)
	r.Register("client-b", 10)

	r.MarkInFlight("client-a", "1")
	r.MarkInFlight("client-b", "1") // same canonical id, different client

	clientID, ok := r.ResolveResponse("1")
	if !ok {
		t.Fatal("expected a match")
	}
	// Whichever client resolves first, its in-flight entry for the id is
	// cleared on resolution, unlike a single last-id field that a second
	// in-flight request would silently overwrite.
	if _, ok := r.clients[clientID].inFlight["1"]; ok {
		t.Fatal("expected in-flight entry to be cleared after resolution")
	}
}

func TestRegistryEnqueueUnknownClientFails(t *testing.T) {
	r := newRegistry(time.Minute)
	if r.Enqueue("nope", []byte("x")) {
		t.Fatal("expected enqueue to an unregistered client to fail")
	}
}

func TestRegistrySweepEvictsIdleClients(t *testing.T) {
	r := newRegistry(0) // everything is immediately "idle"
	r.Register("client-a", 10)

	evicted := r.sweepIdle()
	if len(evicted) != 1 || evicted[0] != "client-a" {
		t.Fatalf("expected client-a evicted, got %v", evicted)
	}
	if _, ok := r.clients["client-a"]; ok {
		t.Fatal("expected client-a removed from registry")
	}
}

func TestRegistryBroadcastSkipsFullQueues(t *testing.T) {
	r := newRegistry(time.Minute)
	r.Register("client-a", 1)

	r.Enqueue("client-a", []byte("first"))
	// Queue (size 1) is now full; Broadcast must not block.
	done := make(chan struct{})
	go func() {
		r.Broadcast([]byte("second"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full client queue")
	}
}
