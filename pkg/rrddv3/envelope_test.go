package rrddv3

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

func sampleSet() *metrics.MetricSet {
	set := metrics.NewMetricSet()
	fam := &metrics.MetricFamily{
		MetricType: metrics.TypeGauge,
		Unit:       "bytes",
		Help:       "demo gauge",
		Metrics:    make(map[uuid.UUID]*metrics.Metric),
	}
	fam.Metrics[uuid.New()] = &metrics.Metric{
		Labels: []metrics.Label{{Name: "id", Value: "0"}},
		MetricsPoint: []metrics.MetricPoint{{
			Value:     metrics.MetricValue{Type: metrics.TypeGauge, Number: metrics.Double(42.5)},
			Timestamp: time.Unix(1000, 0).UTC(),
		}},
	}
	set.Families["demo"] = fam
	return set
}

func TestEnvelopeRoundTrip(t *testing.T) {
	set := sampleSet()
	ts := time.Unix(5000, 0).UTC()

	buf := Write(ts, set)
	env, err := Parse(buf)
	require.NoError(t, err)
	require.Equal(t, ts, env.Timestamp)
	require.Equal(t, set.Families["demo"].Unit, env.Set.Families["demo"].Unit)

	var gotLabels []metrics.Label
	var gotVal float64
	for _, m := range env.Set.Families["demo"].Metrics {
		gotLabels = m.Labels
		gotVal = m.MetricsPoint[0].Value.Number.AsFloat64()
	}
	require.Equal(t, []metrics.Label{{Name: "id", Value: "0"}}, gotLabels)
	require.InDelta(t, 42.5, gotVal, 0.0001)
}

func TestEnvelopeChecksumTamper(t *testing.T) {
	buf := Write(time.Unix(1, 0), sampleSet())
	buf[len(buf)-1] ^= 0xFF
	_, err := Parse(buf)
	require.Error(t, err)
	pe, ok := err.(*ParseError)
	require.True(t, ok)
	require.Equal(t, ErrInvalidChecksum, pe.Kind)
}

func TestEnvelopeEmptySet(t *testing.T) {
	set := metrics.NewMetricSet()
	buf := Write(time.Unix(0, 0), set)
	env, err := Parse(buf)
	require.NoError(t, err)
	require.Empty(t, env.Set.Families)
}
