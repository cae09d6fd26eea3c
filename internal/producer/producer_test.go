package producer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xcp-ng/xcp-metrics-go/internal/hub"
)

func runHub(t *testing.T) (*hub.Hub, context.CancelFunc) {
	t.Helper()
	h := hub.New()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	return h, cancel
}

func TestProducerTickRegistersAndUpdates(t *testing.T) {
	h, cancel := runHub(t)
	defer cancel()

	p := New("demo", h, NewDemoCollector("xcp-host-1", 2))

	require.NoError(t, p.Tick(context.Background()))

	set, err := h.Pull(context.Background())
	require.NoError(t, err)
	require.Contains(t, set.Families, "cpu_usage")
	require.Len(t, set.Families["cpu_usage"].Metrics, 2)
	require.Contains(t, set.Families, "memory_free_bytes")
	require.Contains(t, set.Families, "host_uptime_seconds")

	// Second tick must not re-register (same identities, delta engine
	// already tracks them): count of metrics in the family is unchanged.
	require.NoError(t, p.Tick(context.Background()))
	set2, err := h.Pull(context.Background())
	require.NoError(t, err)
	require.Len(t, set2.Families["cpu_usage"].Metrics, 2)
}

func TestProducerSecondTickUpdatesPointsNotIdentities(t *testing.T) {
	h, cancel := runHub(t)
	defer cancel()

	p := New("demo", h, NewDemoCollector("xcp-host-1", 1))
	require.NoError(t, p.Tick(context.Background()))

	set1, err := h.Pull(context.Background())
	require.NoError(t, err)
	var firstUUID string
	var firstTS time.Time
	for id, m := range set1.Families["memory_free_bytes"].Metrics {
		firstUUID = id.String()
		firstTS = m.MetricsPoint[0].Timestamp
	}

	time.Sleep(time.Millisecond)
	require.NoError(t, p.Tick(context.Background()))

	set2, err := h.Pull(context.Background())
	require.NoError(t, err)
	var secondUUID string
	var secondTS time.Time
	for id, m := range set2.Families["memory_free_bytes"].Metrics {
		secondUUID = id.String()
		secondTS = m.MetricsPoint[0].Timestamp
	}

	require.Equal(t, firstUUID, secondUUID)
	require.True(t, secondTS.After(firstTS))
}
