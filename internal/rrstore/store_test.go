package rrstore

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xcp-ng/xcp-metrics-go/internal/hub"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

func runHub(t *testing.T) (*hub.Hub, context.CancelFunc) {
	t.Helper()
	h := hub.New()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	return h, cancel
}

func TestRRRollupScenario(t *testing.T) {
	h, cancel := runHub(t)
	defer cancel()

	h.SendCreateFamily(hub.CreateFamily{Name: "temp", MetricType: metrics.TypeGauge})
	id := uuid.New()
	h.SendRegisterMetrics(hub.RegisterMetrics{
		Family: "temp",
		UUID:   id,
		Metric: &metrics.Metric{MetricsPoint: []metrics.MetricPoint{{
			Value: metrics.MetricValue{Type: metrics.TypeGauge, Number: metrics.Double(0)},
		}}},
	})

	store := New(h, DefaultSizes)
	for i := 0; i < 12; i++ {
		h.SendUpdateMetrics(hub.UpdateMetrics{
			UUID: id,
			NewPoints: []metrics.MetricPoint{{
				Value: metrics.MetricValue{Type: metrics.TypeGauge, Number: metrics.Double(float64(i))},
			}},
		})
		require.NoError(t, store.Tick(context.Background()))
	}

	e := store.entries[id]
	require.NotNil(t, e)

	fiveSec := e.fiveSec.Snapshot()
	for i := 0; i < 12; i++ {
		require.Equal(t, float64(i), fiveSec[i])
	}

	oneMin := e.oneMin.Snapshot()
	nonNaN := 0
	for _, v := range oneMin {
		if !math.IsNaN(v) {
			nonNaN++
			require.Equal(t, 11.0, v)
		}
	}
	require.Equal(t, 1, nonNaN)
}

func TestStoreSkipsNonGaugeCounterTypes(t *testing.T) {
	h, cancel := runHub(t)
	defer cancel()

	h.SendCreateFamily(hub.CreateFamily{Name: "states", MetricType: metrics.TypeStateSet})
	id := uuid.New()
	h.SendRegisterMetrics(hub.RegisterMetrics{
		Family: "states",
		UUID:   id,
		Metric: &metrics.Metric{MetricsPoint: []metrics.MetricPoint{{
			Value: metrics.MetricValue{Type: metrics.TypeStateSet, States: []metrics.State{{Name: "on", Enabled: true}}},
		}}},
	})

	store := New(h, DefaultSizes)
	require.NoError(t, store.Tick(context.Background()))
	require.Nil(t, store.entries[id])
}
