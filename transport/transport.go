// Package transport defines the uniform four-operation contract both the
// subprocess pipe transport (transport/stdio) and the HTTP+SSE transport
// (transport/httpsse) implement, so the rest of the module (session,
// mcpserver, mcpclient) never depends on which one is in use.
package transport

import "context"

// Envelope wraps a decoded protocol message with the client it came from
// or is addressed to. Stdio transports always leave ClientID empty: there
// is exactly one peer on the other end of a pipe. HTTP+SSE transports
// populate it so the session/dispatch layer can route a response back to
// its originating subscriber without reaching into transport internals.
type Envelope struct {
	ClientID string
	Message  interface{}
}

// Transport is the uniform contract both transport engines implement.
// Initialize must be called once before Send/Receive; Close releases any
// resources (child processes, listeners, open connections). After Close
// the stdio transports return ErrClosed from Send/Receive; the HTTP+SSE
// transports keep no closed state of their own.
type Transport interface {
	// Initialize brings the transport up: spawning a child process,
	// starting an HTTP listener, or opening a client connection,
	// depending on which half is in use.
	Initialize(ctx context.Context) error

	// Send delivers one message to the peer (or, for HTTP+SSE servers,
	// to the client named by env.ClientID, or to all clients when
	// ClientID is empty).
	Send(ctx context.Context, env Envelope) error

	// Receive blocks until a message arrives or the transport fails. The
	// HTTP+SSE transports also return when ctx is cancelled; the stdio
	// transports block in a read that does not observe ctx.
	Receive(ctx context.Context) (Envelope, error)

	// Close releases the transport's resources. Idempotent.
	Close() error
}

// MaxMessageSize bounds a single frame to guard against unbounded memory
// growth from a misbehaving peer.
const MaxMessageSize = 1024 * 1024
