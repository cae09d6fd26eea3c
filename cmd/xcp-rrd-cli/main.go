// Command xcp-rrd-cli is a standalone exporter/debug client (spec §6): it
// calls a running xcp-metricsd's OpenMetrics RPC method over its control
// socket and either prints the result once or, with -port, re-exposes it
// on a local TCP port for scraping.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/xcp-ng/xcp-metrics-go/internal/xlog"
)

func main() {
	var flagSocket, flagTarget, flagLogLevel string
	var flagPort int
	flag.StringVar(&flagSocket, "socket", "", "Path to the daemon's RPC control socket (overrides -target)")
	flag.StringVar(&flagTarget, "target", "xcp-metrics", "Daemon name; resolves to /var/lib/xcp/<target>")
	flag.StringVar(&flagLogLevel, "log-level", "info", "Log level: debug|info|warn|err|fatal|crit")
	flag.IntVar(&flagPort, "port", 0, "If set, re-expose the fetched metrics on 127.0.0.1:<port>/metrics instead of printing once")
	flag.Parse()

	xlog.SetLogLevel(flagLogLevel)

	socketPath := flagSocket
	if socketPath == "" {
		socketPath = "/var/lib/xcp/" + flagTarget
	}
	client := newSocketClient(socketPath)

	if flagPort == 0 {
		text, err := fetchOpenMetrics(context.Background(), client)
		if err != nil {
			xlog.Fatalf("fetch failed: %s", err.Error())
		}
		fmt.Print(text)
		return
	}

	addr := fmt.Sprintf("127.0.0.1:%d", flagPort)
	http.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		text, err := fetchOpenMetrics(r.Context(), client)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/openmetrics-text; version=1.0.0; charset=utf-8")
		fmt.Fprint(w, text)
	})
	xlog.Infof("re-exposing OpenMetrics at http://%s/metrics", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		xlog.Fatalf("listen failed: %s", err.Error())
	}
}

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

type jsonrpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func fetchOpenMetrics(ctx context.Context, client *http.Client) (string, error) {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "OpenMetrics",
		"params":  map[string]any{},
		"id":      1,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://unix/", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out jsonrpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Error != nil {
		return "", fmt.Errorf("OpenMetrics: %d %s", out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}
