package export

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

func TestWriteAvroOCFGauge(t *testing.T) {
	set := metrics.NewMetricSet()
	id := uuid.New()
	set.Families["cpu_usage"] = &metrics.MetricFamily{
		MetricType: metrics.TypeGauge,
		Unit:       "ratio",
		Metrics: map[uuid.UUID]*metrics.Metric{
			id: {
				Labels: []metrics.Label{{Name: "host", Value: "xcp-host-1"}},
				MetricsPoint: []metrics.MetricPoint{{
					Timestamp: time.Now(),
					Value:     metrics.MetricValue{Type: metrics.TypeGauge, Number: metrics.Double(0.42)},
				}},
			},
		},
	}

	out, err := WriteAvroOCF(set)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	// OCF files start with the four-byte magic "Obj" + version 1.
	require.Equal(t, []byte{'O', 'b', 'j', 1}, out[:4])
}

func TestWriteAvroOCFEmptySet(t *testing.T) {
	out, err := WriteAvroOCF(metrics.NewMetricSet())
	require.NoError(t, err)
	require.NotEmpty(t, out)
}
