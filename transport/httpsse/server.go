// Package httpsse implements the HTTP + Server-Sent-Events transport: a
// server half exposing GET /events (SSE) and POST /messages, and a client
// half that consumes them. Per-client routing is handled by a registry
// (registry.go) grounded on the SDK's pendingCmds correlation table.
package httpsse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Adiao1973/mcprotocol-go/protocol"
	"github.com/Adiao1973/mcprotocol-go/transport"
)

// ServerConfig configures the HTTP+SSE server transport.
type ServerConfig struct {
	Addr string
	// PublicBaseURL is the externally reachable origin (e.g.
	// "http://localhost:8765") this server advertises in the "endpoint"
	// SSE frame's absolute POST URL.
	PublicBaseURL string
	// AuthToken, if non-empty, is compared against the bearer token of
	// every GET /events and POST /messages request. Empty disables auth,
	// matching the
	// teacher's OptionalAuthMiddleware shape.
	AuthToken string
	// IdleTimeout evicts a client that has sent or received nothing for
	// this long.
	IdleTimeout time.Duration
	// QueueSize bounds each client's outbound SSE queue.
	QueueSize int
}

// DefaultServerConfig matches the registry's idle-sweep cadence described
// in SPEC_FULL.md.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:          ":8765",
		PublicBaseURL: "http://localhost:8765",
		IdleTimeout:   5 * time.Minute,
		QueueSize:     100,
	}
}

// ServerTransport is the server half of the HTTP+SSE transport.
type ServerTransport struct {
	cfg      ServerConfig
	logger   *zap.SugaredLogger
	registry *registry
	inbound  chan transport.Envelope
	srv      *http.Server
	stopSweep chan struct{}
}

// NewServerTransport builds a server transport; call Initialize to start
// the HTTP listener.
func NewServerTransport(cfg ServerConfig, logger *zap.SugaredLogger) *ServerTransport {
	return &ServerTransport{
		cfg:      cfg,
		logger:   logger,
		registry: newRegistry(cfg.IdleTimeout),
		inbound:  make(chan transport.Envelope, 100),
		stopSweep: make(chan struct{}),
	}
}

func (t *ServerTransport) Initialize(ctx context.Context) error {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/events", t.authMiddleware(), t.handleEvents)
	router.POST("/messages", t.authMiddleware(), t.handleMessages)

	t.srv = &http.Server{Addr: t.cfg.Addr, Handler: router}

	go func() {
		if err := t.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if t.logger != nil {
				t.logger.Errorw("http+sse listener stopped", "error", err)
			}
		}
	}()

	go t.sweepLoop()

	return nil
}

// authMiddleware implements the single-static-bearer-token check the
// spec's Non-goals call for: no JWT verification, no user lookup, just a
// string compare, per SPEC_FULL.md's disposition of the dropped
// golang-jwt dependency.
func (t *ServerTransport) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if t.cfg.AuthToken == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] != t.cfg.AuthToken {
			c.Status(http.StatusUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (t *ServerTransport) handleEvents(c *gin.Context) {
	clientID := t.registry.NewClientID()
	t.registry.Register(clientID, t.cfg.QueueSize)
	defer t.registry.Unregister(clientID)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	endpoint, err := json.Marshal(struct {
		Endpoint string `json:"endpoint"`
		ClientID string `json:"clientId"`
	}{Endpoint: t.cfg.PublicBaseURL + "/messages", ClientID: clientID})
	if err != nil {
		if t.logger != nil {
			t.logger.Errorw("marshal endpoint frame", "error", err)
		}
		return
	}
	fmt.Fprintf(c.Writer, "event: endpoint\ndata: %s\n\n", endpoint)
	c.Writer.Flush()

	outbound, _ := t.registry.outboundOf(clientID)
	keepAlive := time.NewTicker(time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case data, ok := <-outbound:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", data)
			c.Writer.Flush()
			t.registry.Touch(clientID)
		case <-keepAlive.C:
			fmt.Fprint(c.Writer, "data: ping\n\n")
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (t *ServerTransport) handleMessages(c *gin.Context) {
	clientID := c.GetHeader("X-Client-ID")
	if clientID == "" {
		clientID = c.Query("client_id")
	}
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-Client-ID"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	msg, err := protocol.DecodeMessage(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req, ok := msg.(*protocol.Request); ok {
		t.registry.MarkInFlight(clientID, req.ID.Canonical())
	}
	t.registry.Touch(clientID)

	select {
	case t.inbound <- transport.Envelope{ClientID: clientID, Message: msg}:
		c.JSON(http.StatusOK, "Message sent")
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "inbound queue full"})
	}
}

func (t *ServerTransport) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			evicted := t.registry.sweepIdle()
			if len(evicted) > 0 && t.logger != nil {
				t.logger.Infow("evicted idle sse clients", "clients", evicted)
			}
		case <-t.stopSweep:
			return
		}
	}
}

func (t *ServerTransport) Send(ctx context.Context, env transport.Envelope) error {
	data, err := protocol.EncodeFrame(env.Message)
	if err != nil {
		return transport.NewError("send", err)
	}
	// EncodeFrame appends a newline for pipe framing; SSE frames its own
	// data lines, so trim it back off.
	data = data[:len(data)-1]

	if env.ClientID == "" {
		t.registry.Broadcast(data)
		return nil
	}
	if !t.registry.Enqueue(env.ClientID, data) {
		return transport.NewError("send", fmt.Errorf("client %s not connected or queue full", env.ClientID))
	}
	return nil
}

func (t *ServerTransport) Receive(ctx context.Context) (transport.Envelope, error) {
	select {
	case env := <-t.inbound:
		return env, nil
	case <-ctx.Done():
		return transport.Envelope{}, ctx.Err()
	}
}

func (t *ServerTransport) Close() error {
	select {
	case <-t.stopSweep:
	default:
		close(t.stopSweep)
	}
	if t.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.srv.Shutdown(ctx); err != nil {
		return transport.NewError("close", err)
	}
	return nil
}
