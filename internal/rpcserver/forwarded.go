package rpcserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/xcp-ng/xcp-metrics-go/internal/rrstore"
	"github.com/xcp-ng/xcp-metrics-go/internal/xlog"
	"github.com/xcp-ng/xcp-metrics-go/pkg/rrdxml"
)

// ForwardedServer terminates the forwarded-HTTP envelope socket (spec §4.9):
// it decodes one framed ForwardedRequest JSON record per connection,
// routes it, and writes a raw HTTP/1.1 response back onto the same socket.
type ForwardedServer struct {
	socketPath string
	store      *rrstore.Store
}

// NewForwardedServer builds a forwarded-HTTP adapter backed by store for
// /rrd_updates.
func NewForwardedServer(socketPath string, store *rrstore.Store) *ForwardedServer {
	return &ForwardedServer{socketPath: socketPath, store: store}
}

// Listen binds the forwarded-HTTP Unix socket, removing any stale one left
// behind by a previous run. Split from Serve so a caller can drop
// privileges between binding and accepting connections.
func (f *ForwardedServer) Listen() (net.Listener, error) {
	_ = os.Remove(f.socketPath)
	return net.Listen("unix", f.socketPath)
}

// Serve accepts connections on listener until ctx is cancelled, handling
// each on its own goroutine.
func (f *ForwardedServer) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	xlog.Infof("forwarded-http adapter listening at %s", f.socketPath)
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go f.handleConn(conn)
	}
}

func (f *ForwardedServer) handleConn(conn net.Conn) {
	defer conn.Close()

	dec := json.NewDecoder(bufio.NewReader(conn))
	var req ForwardedRequest
	if err := dec.Decode(&req); err != nil {
		if err != io.EOF {
			xlog.Warnf("forwarded: decode: %v", err)
		}
		return
	}

	status, reason, contentType, body := f.route(req)
	writeRawHTTPResponse(conn, status, reason, contentType, body)

	if req.Close {
		return
	}
}

func (f *ForwardedServer) route(req ForwardedRequest) (status int, reason, contentType string, body []byte) {
	switch req.URI {
	case "/rrd_updates":
		xport := f.store.Export(rrstore.FiveSeconds)
		out, err := rrdxml.Render(xport)
		if err != nil {
			return 500, "Internal Server Error", "text/plain", []byte(err.Error())
		}
		return 200, "OK", "text/xml", out
	default:
		return 404, "Not Found", "text/plain", []byte("not found")
	}
}

func writeRawHTTPResponse(w io.Writer, status int, reason, contentType string, body []byte) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", status, reason)
	if contentType != "" {
		fmt.Fprintf(&buf, "Content-Type: %s\r\n", contentType)
	}
	fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(body))
	buf.WriteString("\r\n")
	buf.Write(body)
	w.Write(buf.Bytes())
}
