// Command mcp-http-client connects to an mcp-http-server over HTTP+SSE,
// completes the handshake, lists tools, and calls "echo" once.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"time"

	"go.uber.org/zap"

	"github.com/Adiao1973/mcprotocol-go/mcpclient"
	"github.com/Adiao1973/mcprotocol-go/protocol"
	"github.com/Adiao1973/mcprotocol-go/transport/httpsse"
)

var (
	baseURL = flag.String("url", "http://localhost:8765", "MCP server base URL")
	token   = flag.String("token", "", "bearer token, if the server requires one")
)

func main() {
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	sugar := logger.Sugar()

	cc := httpsse.DefaultClientConfig()
	cc.BaseURL = *baseURL
	cc.AuthToken = *token
	tr := httpsse.NewClientTransport(cc, sugar)

	client := mcpclient.New(protocol.ImplementationInfo{Name: "mcp-http-client", Version: "0.1.0"}, tr, sugar)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := client.Initialize(ctx, protocol.ClientCapabilities{})
	if err != nil {
		sugar.Fatalf("initialize: %v", err)
	}
	sugar.Infof("connected to %s %s", result.ServerInfo.Name, result.ServerInfo.Version)

	raw, err := client.Call(ctx, protocol.MethodToolsList, nil)
	if err != nil {
		sugar.Fatalf("tools/list: %v", err)
	}
	sugar.Infof("tools: %s", raw)

	raw, err = client.Call(ctx, protocol.MethodToolsCall, map[string]interface{}{
		"name":      "echo",
		"arguments": map[string]interface{}{"text": "hello from mcp-http-client"},
	})
	if err != nil {
		sugar.Fatalf("tools/call: %v", err)
	}

	var callResult map[string]json.RawMessage
	if err := json.Unmarshal(raw, &callResult); err != nil {
		sugar.Fatalf("unmarshal tools/call result: %v", err)
	}
	sugar.Infof("echo result: %s", callResult["content"])

	if err := client.Shutdown(ctx); err != nil {
		sugar.Errorf("shutdown: %v", err)
	}
}
