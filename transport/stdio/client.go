// Package stdio implements the subprocess pipe transport: a client half
// that spawns and speaks newline-delimited JSON with a child MCP server
// process, and a server half that speaks the same framing over the
// process's own stdin/stdout.
package stdio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Adiao1973/mcprotocol-go/protocol"
	"github.com/Adiao1973/mcprotocol-go/transport"
)

// ClientConfig configures the subprocess a ClientTransport spawns.
type ClientConfig struct {
	ServerPath  string
	ServerArgs  []string
	BufferSize  int
	CaptureLogs bool
	// KillTimeout bounds how long Close waits for the child to exit
	// after stdin is closed before force-killing it.
	KillTimeout time.Duration
}

// DefaultClientConfig mirrors the teacher's defaults: a 4KB line buffer,
// stderr captured and logged rather than inherited.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerPath:  "mcp-server",
		BufferSize:  4096,
		CaptureLogs: true,
		KillTimeout: 5 * time.Second,
	}
}

// ClientTransport is the client half of the subprocess pipe transport: it
// spawns the configured executable and speaks newline-delimited JSON over
// its stdin/stdout.
type ClientTransport struct {
	cfg    ClientConfig
	logger *zap.SugaredLogger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  *bufio.Writer
	stdinC io.Closer
	reader *bufio.Reader
}

// NewClientTransport builds a client transport; call Initialize to spawn
// the child process.
func NewClientTransport(cfg ClientConfig, logger *zap.SugaredLogger) *ClientTransport {
	return &ClientTransport{cfg: cfg, logger: logger}
}

func (t *ClientTransport) Initialize(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, t.cfg.ServerPath, t.cfg.ServerArgs...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return transport.NewError("initialize", fmt.Errorf("stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return transport.NewError("initialize", fmt.Errorf("stdout pipe: %w", err))
	}

	if t.cfg.CaptureLogs {
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return transport.NewError("initialize", fmt.Errorf("stderr pipe: %w", err))
		}
		go t.captureLogs(stderr)
	}

	if err := cmd.Start(); err != nil {
		return transport.NewError("initialize", fmt.Errorf("start server: %w", err))
	}

	t.mu.Lock()
	t.cmd = cmd
	t.stdin = bufio.NewWriter(stdin)
	t.stdinC = stdin
	t.reader = bufio.NewReaderSize(stdout, t.cfg.BufferSize)
	t.mu.Unlock()

	return nil
}

// captureLogs forwards the child's stderr to the logger one line at a
// time, like the teacher's own stderr-tee transports do.
func (t *ClientTransport) captureLogs(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if t.logger != nil {
			t.logger.Infow("mcp server", "line", scanner.Text())
		}
	}
}

func (t *ClientTransport) Send(ctx context.Context, env transport.Envelope) error {
	data, err := protocol.EncodeFrame(env.Message)
	if err != nil {
		return transport.NewError("send", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stdin == nil {
		return transport.ErrClosed
	}
	if _, err := t.stdin.Write(data); err != nil {
		return transport.NewError("send", err)
	}
	if err := t.stdin.Flush(); err != nil {
		return transport.NewError("send", err)
	}
	return nil
}

func (t *ClientTransport) Receive(ctx context.Context) (transport.Envelope, error) {
	t.mu.Lock()
	reader := t.reader
	t.mu.Unlock()
	if reader == nil {
		return transport.Envelope{}, transport.ErrClosed
	}

	line, err := reader.ReadBytes('\n')
	if err != nil {
		if len(line) == 0 {
			return transport.Envelope{}, transport.NewError("receive", fmt.Errorf("server process terminated"))
		}
	}
	if len(line) > transport.MaxMessageSize {
		return transport.Envelope{}, transport.NewError("receive",
			fmt.Errorf("message too large: %d bytes (max %d)", len(line), transport.MaxMessageSize))
	}

	msg, err := protocol.DecodeMessage(line)
	if err != nil {
		return transport.Envelope{}, transport.NewError("receive", err)
	}
	return transport.Envelope{Message: msg}, nil
}

func (t *ClientTransport) Close() error {
	t.mu.Lock()
	cmd := t.cmd
	stdinC := t.stdinC
	t.cmd = nil
	t.stdinC = nil
	t.stdin = nil
	t.reader = nil
	t.mu.Unlock()

	if stdinC != nil {
		_ = stdinC.Close()
	}
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			if t.logger != nil {
				t.logger.Warnw("server process exited non-zero", "error", err)
			}
			return transport.NewError("close", err)
		}
		return nil
	case <-time.After(t.cfg.KillTimeout):
		_ = cmd.Process.Kill()
		return transport.NewError("close", fmt.Errorf("server process did not exit within %s, killed", t.cfg.KillTimeout))
	}
}
