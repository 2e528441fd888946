// Package factory selects and constructs a transport.Transport from a
// configuration value, the way original_source's TransportConfig /
// TransportType / TransportFactory let the Rust implementation build
// either transport half from one config. It lives in its own package
// because transport/stdio and transport/httpsse both depend on
// transport -- a factory that imports both cannot live inside transport
// itself without an import cycle.
package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Adiao1973/mcprotocol-go/transport"
	"github.com/Adiao1973/mcprotocol-go/transport/httpsse"
	"github.com/Adiao1973/mcprotocol-go/transport/stdio"
)

// Type selects which transport half a Config builds.
type Type string

const (
	TypeStdio   Type = "stdio"
	TypeHTTPSSE Type = "httpsse"
)

// Side selects client or server within the chosen transport.
type Side string

const (
	SideClient Side = "client"
	SideServer Side = "server"
)

// Config is the union of every parameter either transport half needs. Only
// the fields relevant to Type/Side are read.
type Config struct {
	Type Type
	Side Side

	StdioServerPath  string
	StdioServerArgs  []string
	StdioBufferSize  int
	StdioCaptureLogs bool

	HTTPAddr      string
	HTTPBaseURL   string
	HTTPAuthToken string
}

// New builds the transport.Transport named by cfg.
func New(cfg Config, logger *zap.SugaredLogger) (transport.Transport, error) {
	switch cfg.Type {
	case TypeStdio:
		return newStdio(cfg, logger)
	case TypeHTTPSSE:
		return newHTTPSSE(cfg, logger)
	default:
		return nil, fmt.Errorf("factory: unknown transport type %q", cfg.Type)
	}
}

func newStdio(cfg Config, logger *zap.SugaredLogger) (transport.Transport, error) {
	switch cfg.Side {
	case SideClient:
		sc := stdio.DefaultClientConfig()
		if cfg.StdioServerPath != "" {
			sc.ServerPath = cfg.StdioServerPath
		}
		if cfg.StdioServerArgs != nil {
			sc.ServerArgs = cfg.StdioServerArgs
		}
		if cfg.StdioBufferSize > 0 {
			sc.BufferSize = cfg.StdioBufferSize
		}
		sc.CaptureLogs = cfg.StdioCaptureLogs
		return stdio.NewClientTransport(sc, logger), nil
	case SideServer:
		sc := stdio.DefaultServerConfig()
		if cfg.StdioBufferSize > 0 {
			sc.BufferSize = cfg.StdioBufferSize
		}
		return stdio.NewServerTransport(sc, logger), nil
	default:
		return nil, fmt.Errorf("factory: unknown side %q for stdio transport", cfg.Side)
	}
}

func newHTTPSSE(cfg Config, logger *zap.SugaredLogger) (transport.Transport, error) {
	switch cfg.Side {
	case SideClient:
		cc := httpsse.DefaultClientConfig()
		cc.BaseURL = cfg.HTTPBaseURL
		cc.AuthToken = cfg.HTTPAuthToken
		return httpsse.NewClientTransport(cc, logger), nil
	case SideServer:
		sc := httpsse.DefaultServerConfig()
		if cfg.HTTPAddr != "" {
			sc.Addr = cfg.HTTPAddr
		}
		sc.AuthToken = cfg.HTTPAuthToken
		return httpsse.NewServerTransport(sc, logger), nil
	default:
		return nil, fmt.Errorf("factory: unknown side %q for httpsse transport", cfg.Side)
	}
}
