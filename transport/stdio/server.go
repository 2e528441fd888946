package stdio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/Adiao1973/mcprotocol-go/protocol"
	"github.com/Adiao1973/mcprotocol-go/transport"
)

// ServerConfig configures the server half of the subprocess pipe
// transport.
type ServerConfig struct {
	BufferSize int
}

// DefaultServerConfig matches the client side's default buffer size.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{BufferSize: 4096}
}

// ServerTransport is the server half of the subprocess pipe transport: it
// speaks newline-delimited JSON over the process's own stdin/stdout and
// never writes a non-JSON byte to stdout. Log output goes to stderr only.
type ServerTransport struct {
	cfg    ServerConfig
	logger *zap.SugaredLogger

	mu     sync.Mutex
	writer io.Writer
	reader *bufio.Reader
}

// NewServerTransport builds a server transport bound to os.Stdin/os.Stdout.
func NewServerTransport(cfg ServerConfig, logger *zap.SugaredLogger) *ServerTransport {
	return &ServerTransport{
		cfg:    cfg,
		logger: logger,
		writer: os.Stdout,
		reader: bufio.NewReaderSize(os.Stdin, cfg.BufferSize),
	}
}

func (t *ServerTransport) Initialize(ctx context.Context) error {
	return nil
}

func (t *ServerTransport) Send(ctx context.Context, env transport.Envelope) error {
	data, err := protocol.EncodeFrame(env.Message)
	if err != nil {
		return transport.NewError("send", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writer == nil {
		return transport.ErrClosed
	}
	if _, err := t.writer.Write(data); err != nil {
		return transport.NewError("send", err)
	}
	return nil
}

func (t *ServerTransport) Receive(ctx context.Context) (transport.Envelope, error) {
	t.mu.Lock()
	reader := t.reader
	t.mu.Unlock()
	if reader == nil {
		return transport.Envelope{}, transport.ErrClosed
	}

	line, err := reader.ReadBytes('\n')
	if err != nil {
		if len(line) == 0 {
			return transport.Envelope{}, transport.NewError("receive", fmt.Errorf("client closed stdin"))
		}
	}
	if len(line) > transport.MaxMessageSize {
		return transport.Envelope{}, transport.NewError("receive",
			fmt.Errorf("message too large: %d bytes (max %d)", len(line), transport.MaxMessageSize))
	}

	msg, err := protocol.DecodeMessage(line)
	if err != nil {
		if t.logger != nil {
			t.logger.Warnw("discarding malformed frame", "error", err)
		}
		return transport.Envelope{}, transport.NewError("receive", err)
	}
	return transport.Envelope{Message: msg}, nil
}

func (t *ServerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writer = nil
	t.reader = nil
	return nil
}
