// Command mcp-stdio-server runs a minimal MCP server over the subprocess
// pipe transport, speaking newline-delimited JSON on stdin/stdout and
// logging to stderr only.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Adiao1973/mcprotocol-go/mcpserver"
	"github.com/Adiao1973/mcprotocol-go/protocol"
	"github.com/Adiao1973/mcprotocol-go/transport/stdio"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	sugar := logger.Sugar()

	tr := stdio.NewServerTransport(stdio.DefaultServerConfig(), sugar)

	srv := mcpserver.New(mcpserver.Info{Name: "mcp-stdio-server", Version: "0.1.0"}, tr, sugar,
		mcpserver.WithCapabilities(protocol.ServerCapabilities{
			Prompts: &protocol.FeatureCapability{},
		}))

	srv.RegisterHandler("prompts/execute", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return map[string]string{
			"content": "Hello from server!",
			"role":    "assistant",
		}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		srv.Stop()
		cancel()
	}()

	sugar.Info("server initialized and ready to receive messages on stdin")
	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
		sugar.Errorf("server stopped: %v", err)
	}
	_ = tr.Close()
}
