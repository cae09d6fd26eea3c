// Command xcp-metrics-plugin is the generic plugin host (SUPPLEMENTED
// FEATURES #1): a standalone process that registers itself with a running
// xcp-metricsd over its RPC socket, using either the legacy or typed
// protocol, and deregisters on shutdown. It stands in for the Rust tree's
// several per-source plugin binaries (xen, xenstore, squeezed-adjacent,
// procfs-like) with one generic host.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xcp-ng/xcp-metrics-go/internal/runtimeenv"
	"github.com/xcp-ng/xcp-metrics-go/internal/xlog"
)

const openMetricsVersion = "OpenMetrics 1.0.0"

func main() {
	var flagSocket, flagName, flagPath, flagProtocol string
	flag.StringVar(&flagSocket, "socket", "/var/lib/xcp/xcp-metrics", "Path to the daemon's RPC control socket")
	flag.StringVar(&flagName, "name", "demo-plugin", "Plugin name to register under")
	flag.StringVar(&flagPath, "path", "", "Legacy shared-memory file path (legacy protocol only)")
	flag.StringVar(&flagProtocol, "protocol", "legacy", "Registration protocol: legacy|typed")
	flag.Parse()

	if flagProtocol != "legacy" && flagProtocol != "typed" {
		xlog.Fatalf("invalid -protocol %q: must be legacy or typed", flagProtocol)
	}

	if err := runtimeenv.LoadEnv("./.env"); err != nil && !os.IsNotExist(err) {
		xlog.Fatalf("parsing './.env' file failed: %s", err.Error())
	}

	client := newSocketClient(flagSocket)

	if err := registerPlugin(client, flagProtocol, flagName, flagPath); err != nil {
		xlog.Fatalf("registration failed: %s", err.Error())
	}
	xlog.Infof("registered %q as a %s producer", flagName, flagProtocol)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := deregisterPlugin(ctx, client, flagName); err != nil {
		xlog.Warnf("deregistration failed: %s", err.Error())
	}
}

// newSocketClient builds an http.Client that dials flagSocket as a Unix
// socket instead of a TCP address, the same pattern the daemon's own RPC
// server listens on.
func newSocketClient(socketPath string) *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}
}

func registerPlugin(client *http.Client, protocol, name, path string) error {
	method := "Plugin.Local.register"
	params := map[string]any{"name": name}
	if protocol == "legacy" {
		if path != "" {
			params["path"] = path
		}
	} else {
		method = "Plugin.Metrics.register"
		params["version"] = openMetricsVersion
	}

	_, err := callJSONRPC(context.Background(), client, method, params)
	return err
}

func deregisterPlugin(ctx context.Context, client *http.Client, name string) error {
	_, err := callJSONRPC(ctx, client, "Plugin.Local.deregister", map[string]any{"name": name})
	return err
}

type jsonrpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
	ID      int            `json:"id"`
}

type jsonrpcResponse struct {
	Result any `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func callJSONRPC(ctx context.Context, client *http.Client, method string, params map[string]any) (any, error) {
	body, err := json.Marshal(jsonrpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://unix/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out jsonrpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%s: %d %s", method, out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}
