// Package mcpserver implements the server side of the core: a dispatch
// loop over a transport.Transport that handles lifecycle and utility
// methods in-core and forwards everything else to externally registered
// handlers for prompts/resources/tools/roots/sampling, per the spec's
// requirement that those stay external collaborators.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Adiao1973/mcprotocol-go/protocol"
	"github.com/Adiao1973/mcprotocol-go/session"
	"github.com/Adiao1973/mcprotocol-go/transport"
)

// HandlerFunc answers one request's params and returns the response's
// result (to be marshaled into a success Response) or an error (mapped to
// an error Response by the dispatch loop). A panic inside a HandlerFunc is
// recovered and turned into an CodeInternalError response, matching the
// SDK's tool-panic recovery.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Info describes this server for the initialize handshake.
type Info struct {
	Name    string
	Version string
}

// Server dispatches JSON-RPC traffic arriving over a transport.Transport.
type Server struct {
	info      Info
	caps      protocol.ServerCapabilities
	transport transport.Transport
	logger    *zap.SugaredLogger

	mu       sync.RWMutex
	sessions map[string]*session.Session // keyed by ClientID; "" for stdio's single peer
	handlers map[string]HandlerFunc

	shutdown chan struct{}
	started  bool
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithCapabilities overrides the capabilities advertised during
// initialize.
func WithCapabilities(caps protocol.ServerCapabilities) Option {
	return func(s *Server) { s.caps = caps }
}

// New builds a server bound to t. Call RegisterHandler for every external
// method before calling Serve.
func New(info Info, t transport.Transport, logger *zap.SugaredLogger, opts ...Option) *Server {
	s := &Server{
		info:      info,
		transport: t,
		logger:    logger,
		sessions:  make(map[string]*session.Session),
		handlers:  make(map[string]HandlerFunc),
		shutdown:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterHandler binds method to fn. Registering a lifecycle or utility
// method name (initialize, ping, etc.) is a programmer error and panics,
// since the core already owns those.
func (s *Server) RegisterHandler(method string, fn HandlerFunc) {
	switch method {
	case protocol.MethodInitialize, protocol.MethodInitialized, protocol.MethodShutdown,
		protocol.MethodExit, protocol.MethodPing, protocol.MethodCancelled, protocol.MethodProgress:
		panic(fmt.Sprintf("mcpserver: %q is a core method and cannot be overridden", method))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// Serve runs the dispatch loop until ctx is cancelled or Stop is called.
// Per-message read is wrapped in a goroutine so a blocking transport read
// still observes ctx cancellation, the same shape as the teacher's own
// Serve loop.
func (s *Server) Serve(ctx context.Context) error {
	if s.transport == nil {
		return fmt.Errorf("mcpserver: no transport configured")
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("mcpserver: already started")
	}
	s.started = true
	s.mu.Unlock()

	if err := s.transport.Initialize(ctx); err != nil {
		return fmt.Errorf("mcpserver: initialize transport: %w", err)
	}

	s.logInfo("mcp server starting")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdown:
			return nil
		default:
		}

		envChan := make(chan transport.Envelope, 1)
		errChan := make(chan error, 1)
		go func() {
			env, err := s.transport.Receive(ctx)
			if err != nil {
				errChan <- err
				return
			}
			envChan <- env
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdown:
			return nil
		case err := <-errChan:
			var verErr *protocol.InvalidVersionError
			if errors.As(err, &verErr) && verErr.ID != nil {
				resp := protocol.ErrorResponse(*verErr.ID, protocol.NewError(protocol.CodeInvalidRequest, verErr.Error(), nil))
				if sendErr := s.transport.Send(ctx, transport.Envelope{Message: resp}); sendErr != nil {
					s.logErrorf("write invalid-request response: %v", sendErr)
				}
				continue
			}
			s.logDebugf("receive failed: %v", err)
			continue
		case env := <-envChan:
			s.dispatch(ctx, env)
		}
	}
}

// Stop requests the dispatch loop to exit.
func (s *Server) Stop() {
	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
}

func (s *Server) sessionFor(clientID string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[clientID]
	if !ok {
		sess = session.New(protocol.RoleServer)
		s.sessions[clientID] = sess
	}
	return sess
}

func (s *Server) dispatch(ctx context.Context, env transport.Envelope) {
	sess := s.sessionFor(env.ClientID)

	switch msg := env.Message.(type) {
	case *protocol.Request:
		resp := s.handleRequest(ctx, sess, msg)
		if resp == nil {
			return
		}
		if err := s.transport.Send(ctx, transport.Envelope{ClientID: env.ClientID, Message: resp}); err != nil {
			s.logErrorf("write response: %v", err)
		}
	case *protocol.Notification:
		s.handleNotification(ctx, sess, msg)
	case *protocol.Response:
		// The core server does not originate requests of its own in this
		// dispatch path; an inbound Response with no matching caller is
		// logged and dropped.
		s.logDebugf("dropping unsolicited response for id %s", msg.ID.Canonical())
	}
}

func (s *Server) handleRequest(ctx context.Context, sess *session.Session, req *protocol.Request) *protocol.Response {
	if dup := sess.RecordRequestID(req.ID); dup {
		return protocol.ErrorResponse(req.ID, protocol.NewError(protocol.CodeInvalidRequest, "duplicate request id", nil))
	}

	switch req.Method {
	case protocol.MethodInitialize:
		return s.handleInitialize(sess, req)
	case protocol.MethodShutdown:
		if err := sess.BeginShutdown(); err != nil {
			return protocol.ErrorResponse(req.ID, protocol.NewError(protocol.CodeInvalidRequest, err.Error(), nil))
		}
		resp, _ := protocol.SuccessResponse(req.ID, struct{}{})
		return resp
	case protocol.MethodPing:
		resp, _ := protocol.SuccessResponse(req.ID, struct{}{})
		return resp
	default:
		if sess.State() != session.Active {
			return protocol.ErrorResponse(req.ID, protocol.NewError(protocol.CodeServerNotInitialized, "server not initialized", nil))
		}
		return s.dispatchToHandler(ctx, req)
	}
}

func (s *Server) dispatchToHandler(ctx context.Context, req *protocol.Request) (resp *protocol.Response) {
	s.mu.RLock()
	fn, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if !ok {
		return protocol.ErrorResponse(req.ID, protocol.NewError(protocol.CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil))
	}

	defer func() {
		if r := recover(); r != nil {
			resp = protocol.ErrorResponse(req.ID, protocol.NewError(protocol.CodeInternalError, fmt.Sprintf("handler panic: %v", r), nil))
		}
	}()

	result, err := fn(ctx, req.Params)
	if err != nil {
		return protocol.ErrorResponse(req.ID, protocol.NewError(protocol.CodeInternalError, err.Error(), nil))
	}
	success, err := protocol.SuccessResponse(req.ID, result)
	if err != nil {
		return protocol.ErrorResponse(req.ID, protocol.NewError(protocol.CodeInternalError, err.Error(), nil))
	}
	return success
}

func (s *Server) handleInitialize(sess *session.Session, req *protocol.Request) *protocol.Response {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return protocol.ErrorResponse(req.ID, protocol.NewError(protocol.CodeInvalidParams, "invalid initialize params", nil))
	}

	if err := sess.BeginInitialize(); err != nil {
		return protocol.ErrorResponse(req.ID, protocol.NewError(protocol.CodeInvalidRequest, err.Error(), nil))
	}

	if params.ProtocolVersion != protocol.ProtocolVersion {
		_ = sess.AbortInitialize()
		return protocol.ErrorResponse(req.ID, protocol.NewError(protocol.CodeInvalidRequest, "unsupported protocol version", map[string]string{
			"supported": protocol.ProtocolVersion,
			"requested": params.ProtocolVersion,
		}))
	}

	if err := sess.CompleteInitialize(params.ClientInfo, params.Capabilities, params.ProtocolVersion); err != nil {
		return protocol.ErrorResponse(req.ID, protocol.NewError(protocol.CodeInternalError, err.Error(), nil))
	}

	result := protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    s.caps,
		ServerInfo:      protocol.ImplementationInfo{Name: s.info.Name, Version: s.info.Version},
	}
	resp, err := protocol.SuccessResponse(req.ID, result)
	if err != nil {
		return protocol.ErrorResponse(req.ID, protocol.NewError(protocol.CodeInternalError, err.Error(), nil))
	}
	return resp
}

func (s *Server) handleNotification(ctx context.Context, sess *session.Session, n *protocol.Notification) {
	switch n.Method {
	case protocol.MethodInitialized:
		// No-op: the handshake already completed the state transition
		// when the initialize request was answered.
	case protocol.MethodExit:
		if err := sess.CompleteExit(); err != nil {
			s.logDebugf("exit notification in unexpected state: %v", err)
		}
		s.Stop()
	case protocol.MethodCancelled, protocol.MethodProgress:
		// Accepted and dropped: registered handlers only answer
		// requests, so these are not passed on to them, and the core has
		// no in-flight request bookkeeping of its own to cancel against.
	default:
		s.logDebugf("unhandled notification: %s", n.Method)
	}
}

// Broadcast sends a notification to every connected client (a no-op
// ClientID on a stdio transport simply reaches the one peer).
func (s *Server) Broadcast(ctx context.Context, n *protocol.Notification) error {
	return s.transport.Send(ctx, transport.Envelope{Message: n})
}

// SendTo sends a message to one specific client, used by an embedding
// application to push server-originated requests or notifications.
func (s *Server) SendTo(ctx context.Context, clientID string, msg interface{}) error {
	return s.transport.Send(ctx, transport.Envelope{ClientID: clientID, Message: msg})
}

// NotifyCancelled sends a "notifications/cancelled" notification to one
// client, e.g. when an embedding application gives up on a handler
// invocation it dispatched earlier.
func (s *Server) NotifyCancelled(ctx context.Context, clientID string, requestID protocol.RequestID, reason string) error {
	n, err := session.BuildCancelledNotification(requestID, reason)
	if err != nil {
		return err
	}
	return s.SendTo(ctx, clientID, n)
}

// NotifyProgress sends a "$/progress" notification to one client,
// reporting partial progress on the request tagged with progressToken.
func (s *Server) NotifyProgress(ctx context.Context, clientID string, progressToken string, value interface{}) error {
	n, err := session.BuildProgressNotification(progressToken, value)
	if err != nil {
		return err
	}
	return s.SendTo(ctx, clientID, n)
}

func (s *Server) logInfo(msg string) {
	if s.logger != nil {
		s.logger.Info(msg)
	}
}

func (s *Server) logDebugf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debugf(format, args...)
	}
}

func (s *Server) logErrorf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Errorf(format, args...)
	}
}
