// Package mcpclient implements the client side of the core: handshake,
// request/response correlation, notifications, and the
// shutdown/exit sequence, driven over a transport.Transport.
//
// Request/response correlation is grounded on the SDK's
// AgentConnection.SendCommand: a map of pending channels guarded by a
// mutex, with a select/time.After timeout releasing the caller if the
// peer never answers.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Adiao1973/mcprotocol-go/protocol"
	"github.com/Adiao1973/mcprotocol-go/session"
	"github.com/Adiao1973/mcprotocol-go/transport"
)

// DefaultCallTimeout bounds how long Call waits for a response before
// giving up.
const DefaultCallTimeout = 30 * time.Second

// Client is the client side of the core.
type Client struct {
	info      protocol.ImplementationInfo
	transport transport.Transport
	logger    *zap.SugaredLogger
	session   *session.Session

	mu      sync.Mutex
	pending map[string]chan *protocol.Response

	notifications chan *protocol.Notification

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a client bound to t. Call Initialize to perform the
// handshake before issuing any other call.
func New(info protocol.ImplementationInfo, t transport.Transport, logger *zap.SugaredLogger) *Client {
	return &Client{
		info:          info,
		transport:     t,
		logger:        logger,
		session:       session.New(protocol.RoleClient),
		pending:       make(map[string]chan *protocol.Response),
		notifications: make(chan *protocol.Notification, 32),
		done:          make(chan struct{}),
	}
}

// Notifications returns the channel inbound notifications are delivered
// on. Must be drained by the caller or the receive loop will eventually
// block.
func (c *Client) Notifications() <-chan *protocol.Notification {
	return c.notifications
}

// Initialize performs the handshake: sends "initialize", waits for the
// server's reply, sends "initialized" on success, and aborts (sending
// nothing further) on a protocol version mismatch.
func (c *Client) Initialize(ctx context.Context, caps protocol.ClientCapabilities) (protocol.InitializeResult, error) {
	var result protocol.InitializeResult

	if err := c.transport.Initialize(ctx); err != nil {
		return result, fmt.Errorf("mcpclient: initialize transport: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.receiveLoop(runCtx)

	if err := c.session.BeginInitialize(); err != nil {
		return result, err
	}

	params, err := json.Marshal(protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    caps,
		ClientInfo:      c.info,
	})
	if err != nil {
		return result, fmt.Errorf("mcpclient: marshal initialize params: %w", err)
	}

	raw, err := c.call(ctx, protocol.NewStringID(uuid.NewString()), protocol.MethodInitialize, params, DefaultCallTimeout)
	if err != nil {
		_ = c.session.AbortInitialize()
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		_ = c.session.AbortInitialize()
		return result, fmt.Errorf("mcpclient: unmarshal initialize result: %w", err)
	}

	if result.ProtocolVersion != protocol.ProtocolVersion {
		_ = c.session.AbortInitialize()
		return result, fmt.Errorf("mcpclient: server protocol version %q unsupported (want %q), aborting handshake without sending initialized",
			result.ProtocolVersion, protocol.ProtocolVersion)
	}

	if err := c.session.CompleteInitialize(result.ServerInfo, nil, result.ProtocolVersion); err != nil {
		return result, err
	}

	if err := c.Notify(ctx, protocol.MethodInitialized, nil); err != nil {
		return result, fmt.Errorf("mcpclient: send initialized: %w", err)
	}

	return result, nil
}

// Call issues a request tagged with an id the client mints itself, and
// blocks for the matching response or until ctx is done or timeout
// elapses.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	return c.CallWithID(ctx, protocol.NewStringID(uuid.NewString()), method, params)
}

// CallWithID issues a request tagged with the caller-supplied id instead
// of one minted by the client. If id has already been used on this
// session (per the canonical-collision rule two ids with the same
// projection share), the request is rejected locally -- nothing is
// written to the transport -- rather than sent with a duplicate id.
func (c *Client) CallWithID(ctx context.Context, id protocol.RequestID, method string, params interface{}) (json.RawMessage, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, id, method, raw, DefaultCallTimeout)
}

func (c *Client) call(ctx context.Context, id protocol.RequestID, method string, params json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	if dup := c.session.RecordRequestID(id); dup {
		return nil, fmt.Errorf("mcpclient: request id %s already used on this session, rejected before send", id.Canonical())
	}

	ch := make(chan *protocol.Response, 1)

	c.mu.Lock()
	c.pending[id.Canonical()] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id.Canonical())
		c.mu.Unlock()
	}()

	req := &protocol.Request{ID: id, Method: method, Params: params}
	if err := c.transport.Send(ctx, transport.Envelope{Message: req}); err != nil {
		return nil, fmt.Errorf("mcpclient: send %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-time.After(timeout):
		return nil, protocol.NewError(protocol.CodeRequestCancelled, fmt.Sprintf("%s timed out after %s", method, timeout), nil)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends a one-way notification; no response is expected.
func (c *Client) Notify(ctx context.Context, method string, params interface{}) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	n := &protocol.Notification{Method: method, Params: raw}
	return c.transport.Send(ctx, transport.Envelope{Message: n})
}

// Ping sends a ping request and waits for the reply, matching the
// recommended 2-second round-trip timeout. Delegates to session.Ping for
// the request shape and timeout handling; only the send/receive plumbing
// (transport + pending-response correlation) is client-specific.
func (c *Client) Ping(ctx context.Context) error {
	id := protocol.NewStringID(uuid.NewString())
	if dup := c.session.RecordRequestID(id); dup {
		return fmt.Errorf("mcpclient: request id %s already used on this session, rejected before send", id.Canonical())
	}

	ch := make(chan *protocol.Response, 1)
	c.mu.Lock()
	c.pending[id.Canonical()] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id.Canonical())
		c.mu.Unlock()
	}()

	send := func(ctx context.Context, req *protocol.Request) error {
		return c.transport.Send(ctx, transport.Envelope{Message: req})
	}
	return session.Ping(ctx, id, send, ch, session.DefaultPingTimeout)
}

// Cancel sends a "notifications/cancelled" notification for requestID,
// e.g. when the caller gives up on a long-running request it issued
// earlier.
func (c *Client) Cancel(ctx context.Context, requestID protocol.RequestID, reason string) error {
	n, err := session.BuildCancelledNotification(requestID, reason)
	if err != nil {
		return err
	}
	return c.transport.Send(ctx, transport.Envelope{Message: n})
}

// Progress sends a "$/progress" notification reporting partial progress
// on the request tagged with progressToken.
func (c *Client) Progress(ctx context.Context, progressToken string, value interface{}) error {
	n, err := session.BuildProgressNotification(progressToken, value)
	if err != nil {
		return err
	}
	return c.transport.Send(ctx, transport.Envelope{Message: n})
}

// Shutdown sends "shutdown", waits for acknowledgement, then sends "exit"
// and tears down the transport.
func (c *Client) Shutdown(ctx context.Context) error {
	if _, err := c.call(ctx, protocol.NewStringID(uuid.NewString()), protocol.MethodShutdown, nil, DefaultCallTimeout); err != nil {
		return fmt.Errorf("mcpclient: shutdown: %w", err)
	}
	if err := c.session.BeginShutdown(); err != nil {
		return err
	}
	if err := c.Notify(ctx, protocol.MethodExit, nil); err != nil {
		return fmt.Errorf("mcpclient: send exit: %w", err)
	}
	if err := c.session.CompleteExit(); err != nil {
		return err
	}
	if c.cancel != nil {
		c.cancel()
	}
	return c.transport.Close()
}

func (c *Client) receiveLoop(ctx context.Context) {
	defer close(c.done)
	for {
		env, err := c.transport.Receive(ctx)
		if err != nil {
			if c.logger != nil {
				c.logger.Debugw("receive loop exiting", "error", err)
			}
			return
		}

		switch msg := env.Message.(type) {
		case *protocol.Response:
			c.mu.Lock()
			ch, ok := c.pending[msg.ID.Canonical()]
			if ok {
				delete(c.pending, msg.ID.Canonical())
			}
			c.mu.Unlock()
			if ok {
				ch <- msg
				close(ch)
			} else if c.logger != nil {
				c.logger.Debugw("response for unknown request id", "id", msg.ID.Canonical())
			}
		case *protocol.Notification:
			select {
			case c.notifications <- msg:
			case <-ctx.Done():
				return
			}
		case *protocol.Request:
			// Server-originated requests (e.g. sampling/createMessage)
			// are out of the core's scope; an embedding application can
			// extend Client to answer them. The core just logs them.
			if c.logger != nil {
				c.logger.Debugw("received server-originated request", "method", msg.Method)
			}
		}
	}
}

func marshalParams(params interface{}) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: marshal params: %w", err)
	}
	return raw, nil
}
