// Command mcp-http-server runs a minimal MCP server over the HTTP+SSE
// transport, exposing one toy "echo" tool so the transport and dispatch
// loop can be exercised end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Adiao1973/mcprotocol-go/internal/config"
	"github.com/Adiao1973/mcprotocol-go/mcpserver"
	"github.com/Adiao1973/mcprotocol-go/protocol"
	"github.com/Adiao1973/mcprotocol-go/transport/httpsse"
)

var (
	configFile = flag.String("config", "config.yaml", "Configuration file path")
	version    = "0.1.0"
)

func main() {
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Infof("mcp-http-server v%s starting...", version)

	cfg, err := config.Load(*configFile)
	if err != nil {
		sugar.Warnf("failed to load config file, using defaults: %v", err)
		cfg = config.Default()
	}

	sc := httpsse.DefaultServerConfig()
	sc.Addr = cfg.HTTP.Addr
	sc.PublicBaseURL = cfg.HTTP.BaseURL
	sc.AuthToken = cfg.HTTP.AuthToken
	if cfg.HTTP.IdleTimeout > 0 {
		sc.IdleTimeout = time.Duration(cfg.HTTP.IdleTimeout) * time.Second
	}
	tr := httpsse.NewServerTransport(sc, sugar)

	srv := mcpserver.New(mcpserver.Info{Name: "mcp-http-server", Version: version}, tr, sugar,
		mcpserver.WithCapabilities(protocol.ServerCapabilities{
			Tools: &protocol.FeatureCapability{},
		}))

	srv.RegisterHandler(protocol.MethodToolsList, func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		return map[string]interface{}{
			"tools": []map[string]interface{}{
				{
					"name":        "echo",
					"description": "Echoes back the supplied text",
					"inputSchema": map[string]interface{}{
						"type":       "object",
						"properties": map[string]interface{}{"text": map[string]string{"type": "string"}},
					},
				},
			},
		}, nil
	})
	srv.RegisterHandler(protocol.MethodToolsCall, handleToolsCall)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Serve(ctx); err != nil && err != context.Canceled {
			sugar.Errorf("server stopped: %v", err)
		}
	}()

	sugar.Infof("listening on %s", sc.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	srv.Stop()
	if err := tr.Close(); err != nil {
		sugar.Errorf("transport close error: %v", err)
	}
	_ = shutdownCtx

	sugar.Info("server stopped")
}

func handleToolsCall(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, err
	}

	text, _ := args.Arguments["text"].(string)
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
	}, nil
}
