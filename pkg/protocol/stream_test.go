package protocol

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

func TestMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := CreateFamily("cpu_load", metrics.TypeGauge, "percent", "CPU load")

	require.NoError(t, WriteMessage(&buf, msg))
	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestUpdateMetricRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	id := uuid.New()
	m := &metrics.Metric{
		Labels: []metrics.Label{{Name: "core", Value: "0"}},
		MetricsPoint: []metrics.MetricPoint{{
			Value: metrics.MetricValue{Type: metrics.TypeGauge, Number: metrics.Double(1.5)},
		}},
	}
	msg := UpdateMetric("cpu_load", id, m)

	require.NoError(t, WriteMessage(&buf, msg))
	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, id, got.UUID)
	require.Equal(t, "cpu_load", got.FamilyName)
	require.Equal(t, m.Labels, got.Metric.Labels)
}

func TestFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	var lenPrefix [4]byte
	lenPrefix[0] = 0xFF // encodes a length far over MaxPayloadSize
	buf.Write(lenPrefix[:])

	_, err := ReadMessage(&buf)
	require.ErrorIs(t, err, ErrFileTooLarge)
}

func TestReadMessageContextCancel(t *testing.T) {
	r, _ := func() (*bytesPipeReader, *bytes.Buffer) {
		return &bytesPipeReader{}, nil
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ReadMessageContext(ctx, r)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// bytesPipeReader blocks forever on Read, simulating a socket with no data
// so ReadMessageContext's cancellation path is exercised.
type bytesPipeReader struct{}

func (bytesPipeReader) Read(p []byte) (int, error) {
	select {}
}
