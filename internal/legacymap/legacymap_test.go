package legacymap

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
	"github.com/xcp-ng/xcp-metrics-go/pkg/rrddv2"
)

func TestMapDefaultGauge(t *testing.T) {
	meta := rrddv2.DataSourceMeta{Type: rrddv2.SourceGauge, Owner: rrddv2.Owner{Kind: rrddv2.OwnerHost}}
	family, mtype, labels, ok := MapDefault("cpu-cstate", meta)
	require.True(t, ok)
	require.Equal(t, "cpu_cstate", family)
	require.Equal(t, metrics.TypeGauge, mtype)
	require.Empty(t, labels)
}

func TestMapDefaultDerivSkipped(t *testing.T) {
	meta := rrddv2.DataSourceMeta{Type: rrddv2.SourceDerive}
	_, _, _, ok := MapDefault("x", meta)
	require.False(t, ok)
}

func TestDefaultExportNameWorkedExample(t *testing.T) {
	// spec §8 boundary case: "cpu-cstate" with labels {id:"0", state:"3"}
	// emits family cpu_cstate and default export name cpu_cstate_0_3.
	labels := []metrics.Label{{Name: "id", Value: "0"}, {Name: "state", Value: "3"}}
	require.Equal(t, "cpu_cstate_0_3", DefaultExportName("cpu-cstate", labels))
}

func TestApplyPatternWorkedExample(t *testing.T) {
	rule := PatternRule{Pattern: "cpu{id}-C{state}"}
	labels := []metrics.Label{{Name: "id", Value: "0"}, {Name: "state", Value: "3"}}
	require.Equal(t, "cpu0_C3", ApplyPattern(rule, labels))
}

func TestOwnerLabel(t *testing.T) {
	meta := rrddv2.DataSourceMeta{Type: rrddv2.SourceAbsolute, Owner: rrddv2.Owner{Kind: rrddv2.OwnerVM, UUID: "abc"}}
	_, _, labels, ok := MapDefault("life", meta)
	require.True(t, ok)
	require.Equal(t, []metrics.Label{{Name: "vm", Value: "abc"}}, labels)
}
