package export

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

func TestWriteTextGaugeAndTrailer(t *testing.T) {
	set := metrics.NewMetricSet()
	set.Families["cpu_usage"] = &metrics.MetricFamily{
		MetricType: metrics.TypeGauge,
		Unit:       "ratio",
		Help:       "cpu load",
		Metrics: map[uuid.UUID]*metrics.Metric{
			uuid.New(): {
				Labels: []metrics.Label{{Name: "host", Value: "xcp-1"}},
				MetricsPoint: []metrics.MetricPoint{{
					Value: metrics.MetricValue{Type: metrics.TypeGauge, Number: metrics.Double(0.5)},
				}},
			},
		},
	}

	out := WriteText(set)
	require.Contains(t, out, "# TYPE cpu_usage_ratio gauge")
	require.Contains(t, out, "# UNIT cpu_usage_ratio ratio")
	require.Contains(t, out, "# HELP cpu_usage_ratio cpu load")
	require.Contains(t, out, `cpu_usage_ratio{host="xcp-1"} 0.5`)
	require.True(t, strings.HasSuffix(out, "# EOF\n"))
}

func TestWriteTextCounterWithCreated(t *testing.T) {
	created := time.Unix(1000, 0).UTC()
	set := metrics.NewMetricSet()
	set.Families["requests"] = &metrics.MetricFamily{
		MetricType: metrics.TypeCounter,
		Metrics: map[uuid.UUID]*metrics.Metric{
			uuid.New(): {
				MetricsPoint: []metrics.MetricPoint{{
					Value: metrics.MetricValue{Type: metrics.TypeCounter, Total: metrics.Int64Value(42), Created: &created},
				}},
			},
		},
	}

	out := WriteText(set)
	require.Contains(t, out, "requests_total 42")
	require.Contains(t, out, "requests_created 1000")
}

func TestWriteTextStateSet(t *testing.T) {
	set := metrics.NewMetricSet()
	set.Families["power_state"] = &metrics.MetricFamily{
		MetricType: metrics.TypeStateSet,
		Metrics: map[uuid.UUID]*metrics.Metric{
			uuid.New(): {
				MetricsPoint: []metrics.MetricPoint{{
					Value: metrics.MetricValue{Type: metrics.TypeStateSet, States: []metrics.State{
						{Name: "running", Enabled: true},
						{Name: "halted", Enabled: false},
					}},
				}},
			},
		},
	}

	out := WriteText(set)
	require.Contains(t, out, `power_state{name="running"} 1`)
	require.Contains(t, out, `power_state{name="halted"} 0`)
}

func TestWriteTextHistogram(t *testing.T) {
	set := metrics.NewMetricSet()
	set.Families["latency"] = &metrics.MetricFamily{
		MetricType: metrics.TypeHistogram,
		Metrics: map[uuid.UUID]*metrics.Metric{
			uuid.New(): {
				MetricsPoint: []metrics.MetricPoint{{
					Value: metrics.MetricValue{
						Type:  metrics.TypeHistogram,
						Sum:   12.5,
						Count: 7,
						Buckets: []metrics.Bucket{
							{Count: 3, UpperBound: 1},
							{Count: 7, UpperBound: 5},
						},
					},
				}},
			},
		},
	}

	out := WriteText(set)
	require.Contains(t, out, `latency_bucket{le="1"} 3`)
	require.Contains(t, out, `latency_bucket{le="5"} 7`)
	require.Contains(t, out, "latency_count 7")
	require.Contains(t, out, "latency_sum 12.5")
}
