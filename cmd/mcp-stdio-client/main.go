// Command mcp-stdio-client spawns an mcp-stdio-server child process,
// completes the handshake, and calls "prompts/execute" once.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Adiao1973/mcprotocol-go/mcpclient"
	"github.com/Adiao1973/mcprotocol-go/protocol"
	"github.com/Adiao1973/mcprotocol-go/transport/stdio"
)

var serverPath = flag.String("server", "", "path to the mcp-stdio-server executable")

func main() {
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	sugar := logger.Sugar()

	path := *serverPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			sugar.Fatalf("getwd: %v", err)
		}
		path = wd + "/mcp-stdio-server"
	}

	cc := stdio.DefaultClientConfig()
	cc.ServerPath = path
	tr := stdio.NewClientTransport(cc, sugar)

	client := mcpclient.New(protocol.ImplementationInfo{Name: "mcp-stdio-client", Version: "0.1.0"}, tr, sugar)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := client.Initialize(ctx, protocol.ClientCapabilities{})
	if err != nil {
		sugar.Fatalf("initialize: %v", err)
	}
	sugar.Infof("connected to %s %s", result.ServerInfo.Name, result.ServerInfo.Version)

	raw, err := client.Call(ctx, "prompts/execute", map[string]string{
		"content": "Hello from client!",
		"role":    "user",
	})
	if err != nil {
		sugar.Fatalf("prompts/execute: %v", err)
	}
	sugar.Infof("server response: %s", raw)

	if err := client.Shutdown(ctx); err != nil {
		sugar.Errorf("shutdown: %v", err)
	}
}
