package rpcserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xcp-ng/xcp-metrics-go/internal/rrstore"
)

func TestForwardedRouteRrdUpdates(t *testing.T) {
	h, cancel := runHub(t)
	defer cancel()
	store := rrstore.New(h, rrstore.DefaultSizes)
	require.NoError(t, store.Tick(context.Background()))

	f := &ForwardedServer{store: store}
	status, reason, ct, body := f.route(ForwardedRequest{URI: "/rrd_updates"})
	require.Equal(t, 200, status)
	require.Equal(t, "OK", reason)
	require.Equal(t, "text/xml", ct)
	require.Contains(t, string(body), "<xport>")
}

func TestForwardedRouteUnknownPath(t *testing.T) {
	f := &ForwardedServer{}
	status, _, _, _ := f.route(ForwardedRequest{URI: "/not-a-real-path"})
	require.Equal(t, 404, status)
}

func TestWriteRawHTTPResponseInjectsContentLength(t *testing.T) {
	var buf rawWriter
	writeRawHTTPResponse(&buf, 200, "OK", "text/plain", []byte("hi"))
	require.Contains(t, buf.String(), "Content-Length: 2")
	require.Contains(t, buf.String(), "HTTP/1.1 200 OK")
}

type rawWriter struct {
	data []byte
}

func (w *rawWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *rawWriter) String() string { return string(w.data) }
