package rpcserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xcp-ng/xcp-metrics-go/internal/hub"
	"github.com/xcp-ng/xcp-metrics-go/internal/producer"
)

func runHub(t *testing.T) (*hub.Hub, func()) {
	t.Helper()
	h := hub.New()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	return h, cancel
}

func newTestRouter(t *testing.T) (*Router, func()) {
	h, cancel := runHub(t)
	sched, err := producer.NewScheduler()
	require.NoError(t, err)
	sched.Start()
	return &Router{Hub: h, Registry: NewProducerRegistry(h, sched)}, cancel
}

func TestDispatchPluginLocalNextReading(t *testing.T) {
	rt, cancel := newTestRouter(t)
	defer cancel()

	result, rpcErr := rt.Dispatch(context.Background(), parsedCall{Method: "Plugin.Local.next_reading"})
	require.Nil(t, rpcErr)
	require.Equal(t, 5.0, result.Value)
}

func TestDispatchPluginMetricsRegisterRejectsBadVersion(t *testing.T) {
	rt, cancel := newTestRouter(t)
	defer cancel()

	_, rpcErr := rt.Dispatch(context.Background(), parsedCall{
		Method: "Plugin.Metrics.register",
		Params: map[string]any{"name": "demo", "version": "bogus"},
	})
	require.NotNil(t, rpcErr)
	require.Equal(t, ErrAppSpecific, rpcErr.Code)
}

func TestDispatchPluginMetricsRegisterThenOpenMetrics(t *testing.T) {
	rt, cancel := newTestRouter(t)
	defer cancel()

	_, rpcErr := rt.Dispatch(context.Background(), parsedCall{
		Method: "Plugin.Metrics.register",
		Params: map[string]any{"name": "demo", "version": openMetricsVersion},
	})
	require.Nil(t, rpcErr)

	time.Sleep(50 * time.Millisecond)

	result, rpcErr := rt.Dispatch(context.Background(), parsedCall{Method: "OpenMetrics"})
	require.Nil(t, rpcErr)
	text, ok := result.Value.(string)
	require.True(t, ok)
	require.Contains(t, text, "# EOF")
}

func TestDispatchOpenMetricsAvro(t *testing.T) {
	rt, cancel := newTestRouter(t)
	defer cancel()

	_, rpcErr := rt.Dispatch(context.Background(), parsedCall{
		Method: "Plugin.Metrics.register",
		Params: map[string]any{"name": "demo", "version": openMetricsVersion},
	})
	require.Nil(t, rpcErr)
	time.Sleep(50 * time.Millisecond)

	result, rpcErr := rt.Dispatch(context.Background(), parsedCall{Method: "OpenMetrics.Avro"})
	require.Nil(t, rpcErr)
	require.Equal(t, "application/avro-ocf", result.ContentType)
	require.NotEmpty(t, result.Binary)
}

func TestDispatchUnknownMethod(t *testing.T) {
	rt, cancel := newTestRouter(t)
	defer cancel()

	_, rpcErr := rt.Dispatch(context.Background(), parsedCall{Method: "Nonexistent.Method"})
	require.NotNil(t, rpcErr)
	require.Equal(t, ErrMethodNotFound, rpcErr.Code)
}

func TestDispatchPluginLocalDeregisterIsNoOpWhenUnknown(t *testing.T) {
	rt, cancel := newTestRouter(t)
	defer cancel()

	result, rpcErr := rt.Dispatch(context.Background(), parsedCall{
		Method: "Plugin.Local.deregister",
		Params: map[string]any{"name": "never-registered"},
	})
	require.Nil(t, rpcErr)
	require.Equal(t, true, result.Value)
}
