package rrdxml

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xcp-ng/xcp-metrics-go/internal/rrstore"
)

func TestRenderStructure(t *testing.T) {
	now := time.Unix(1000, 0).UTC()
	x := rrstore.RrdXport{
		Start:    now.Add(-10 * time.Second),
		End:      now,
		StepSecs: 5,
		Legend:   []string{"cpu_usage", "memory_free_bytes"},
		Data: []rrstore.RrdRow{
			{Timestamp: now.Add(-5 * time.Second), Values: []float64{0.1, math.NaN()}},
			{Timestamp: now, Values: []float64{0.2, 2048}},
		},
	}

	out, err := Render(x)
	require.NoError(t, err)
	s := string(out)
	require.Contains(t, s, "<xport>")
	require.Contains(t, s, "<entry>cpu_usage</entry>")
	require.Contains(t, s, "<entry>memory_free_bytes</entry>")
	require.Contains(t, s, "<v>NaN</v>")
	require.Contains(t, s, "<v>0.2</v>")
	require.Contains(t, s, "<rows>2</rows>")
	require.Contains(t, s, "<columns>2</columns>")
}
