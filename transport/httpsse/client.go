package httpsse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Adiao1973/mcprotocol-go/protocol"
	"github.com/Adiao1973/mcprotocol-go/transport"
)

// ClientConfig configures the HTTP+SSE client transport.
type ClientConfig struct {
	BaseURL   string
	AuthToken string
	// EndpointWait bounds how long Initialize waits for the server's
	// "endpoint" SSE frame before giving up.
	EndpointWait time.Duration
}

// DefaultClientConfig waits up to 1s (10 x 100ms) for the endpoint frame,
// matching the spec's bounded-wait requirement.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{EndpointWait: time.Second}
}

// ClientTransport is the client half of the HTTP+SSE transport: it opens
// GET /events, parses the incrementally-delivered SSE stream itself (no
// third-party SSE client is used -- every repo in the reference pack,
// including the vendored official SDK, hand-rolls this against net/http
// too), and posts outgoing messages to POST /messages.
type ClientTransport struct {
	cfg    ClientConfig
	logger *zap.SugaredLogger
	http   *http.Client

	mu       sync.Mutex
	endpoint string
	clientID string

	inbound chan transport.Envelope
	cancel  context.CancelFunc
	ready   chan struct{}
}

// NewClientTransport builds a client transport; call Initialize to open
// the SSE stream.
func NewClientTransport(cfg ClientConfig, logger *zap.SugaredLogger) *ClientTransport {
	return &ClientTransport{
		cfg:     cfg,
		logger:  logger,
		http:    &http.Client{},
		inbound: make(chan transport.Envelope, 32),
		ready:   make(chan struct{}),
	}
}

func (t *ClientTransport) Initialize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.BaseURL+"/events", nil)
	if err != nil {
		return transport.NewError("initialize", err)
	}
	t.applyAuth(req)

	resp, err := t.http.Do(req)
	if err != nil {
		return transport.NewError("initialize", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return transport.NewError("initialize", fmt.Errorf("unexpected status %d opening event stream", resp.StatusCode))
	}

	streamCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.readLoop(streamCtx, resp.Body)

	select {
	case <-t.ready:
		return nil
	case <-time.After(t.cfg.EndpointWait):
		return transport.NewError("initialize", fmt.Errorf("timed out waiting for endpoint frame"))
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *ClientTransport) applyAuth(req *http.Request) {
	if t.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.AuthToken)
	}
}

// readLoop incrementally parses the "\n\n"-delimited SSE stream: each
// event is one or more "field: value" lines. It recognizes the
// server-sent "endpoint" event (carrying the POST target and client id)
// and plain "data:" events carrying JSON-RPC frames.
func (t *ClientTransport) readLoop(ctx context.Context, body io.ReadCloser) {
	defer body.Close()

	reader := bufio.NewReader(body)
	var eventType string
	var dataLines []string

	flush := func() {
		if len(dataLines) == 0 {
			eventType = ""
			return
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil

		if eventType == "endpoint" {
			endpoint, clientID, err := parseEndpointFrame(data)
			if err != nil {
				if t.logger != nil {
					t.logger.Warnw("discarding malformed endpoint frame", "error", err)
				}
				eventType = ""
				return
			}
			t.mu.Lock()
			t.endpoint, t.clientID = endpoint, clientID
			t.mu.Unlock()
			select {
			case <-t.ready:
			default:
				close(t.ready)
			}
			eventType = ""
			return
		}
		eventType = ""

		if data == "ping" {
			// The server's keep-alive frame; nothing to deliver.
			return
		}

		msg, err := protocol.DecodeMessage([]byte(data))
		if err != nil {
			if t.logger != nil {
				t.logger.Warnw("discarding malformed sse frame", "error", err)
			}
			return
		}
		select {
		case t.inbound <- transport.Envelope{Message: msg}:
		case <-ctx.Done():
		}
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive, ignored
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// parseEndpointFrame decodes the server's "endpoint" SSE frame: a JSON
// object {"endpoint": <absolute POST URL>, "clientId": <id as string>}.
func parseEndpointFrame(data string) (endpoint, clientID string, err error) {
	var frame struct {
		Endpoint string `json:"endpoint"`
		ClientID string `json:"clientId"`
	}
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		return "", "", fmt.Errorf("decode endpoint frame: %w", err)
	}
	if frame.Endpoint == "" || frame.ClientID == "" {
		return "", "", fmt.Errorf("endpoint frame missing endpoint or clientId")
	}
	return frame.Endpoint, frame.ClientID, nil
}

func (t *ClientTransport) Send(ctx context.Context, env transport.Envelope) error {
	data, err := protocol.EncodeFrame(env.Message)
	if err != nil {
		return transport.NewError("send", err)
	}
	data = data[:len(data)-1]

	t.mu.Lock()
	endpoint := t.endpoint
	clientID := t.clientID
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return transport.NewError("send", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", clientID)
	t.applyAuth(req)

	resp, err := t.http.Do(req)
	if err != nil {
		return transport.NewError("send", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return transport.NewError("send", fmt.Errorf("server returned status %d", resp.StatusCode))
	}
	return nil
}

func (t *ClientTransport) Receive(ctx context.Context) (transport.Envelope, error) {
	select {
	case env := <-t.inbound:
		return env, nil
	case <-ctx.Done():
		return transport.Envelope{}, ctx.Err()
	}
}

func (t *ClientTransport) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}
