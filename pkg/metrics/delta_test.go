package metrics

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setWithMetric(family string, labels []Label) *MetricSet {
	s := NewMetricSet()
	fam := newFamily(TypeGauge, "", "")
	fam.Metrics[uuid.New()] = &Metric{Labels: labels}
	s.Families[family] = fam
	return s
}

func TestDeltaMinimality(t *testing.T) {
	e := NewDeltaEngine()
	x := setWithMetric("fam", []Label{{Name: "k", Value: "1"}})

	d1 := e.ComputeDelta(x)
	require.False(t, d1.IsEmpty())
	e.ApplyDelta(d1)

	d2 := e.ComputeDelta(x)
	require.True(t, d2.IsEmpty(), "delta against the engine's own current view must be empty")
}

func TestDeltaSoundness(t *testing.T) {
	e := NewDeltaEngine()
	x := setWithMetric("fam", []Label{{Name: "k", Value: "1"}})

	d := e.ComputeDelta(x)
	e.ApplyDelta(d)

	require.Empty(t, e.ComputeDelta(x).AddedMetrics)
	require.Empty(t, e.ComputeDelta(x).RemovedMetrics)
}

func TestTypedDeltaScenario(t *testing.T) {
	// Mirrors spec §8 scenario 2: snapshot A has {k:1}=10, snapshot B drops
	// k:1 and adds k:2=20. After both ticks the model holds exactly {k:2}.
	e := NewDeltaEngine()

	a := NewMetricSet()
	famA := newFamily(TypeGauge, "", "")
	metricA := &Metric{Labels: []Label{{Name: "k", Value: "1"}}}
	famA.Metrics[uuid.New()] = metricA
	a.Families["fam"] = famA

	dA := e.ComputeDelta(a)
	require.Len(t, dA.AddedMetrics, 1)
	e.ApplyDelta(dA)

	b := NewMetricSet()
	famB := newFamily(TypeGauge, "", "")
	metricB := &Metric{Labels: []Label{{Name: "k", Value: "2"}}}
	famB.Metrics[uuid.New()] = metricB
	b.Families["fam"] = famB

	dB := e.ComputeDelta(b)
	require.Len(t, dB.AddedMetrics, 1)
	require.Len(t, dB.RemovedMetrics, 1)
	require.Equal(t, dA.AddedMetrics[0].UUID, dB.RemovedMetrics[0])
	e.ApplyDelta(dB)

	u, ok := e.UUIDFor("fam", []Label{{Name: "k", Value: "2"}})
	require.True(t, ok)
	require.Equal(t, dB.AddedMetrics[0].UUID, u)

	_, ok = e.UUIDFor("fam", []Label{{Name: "k", Value: "1"}})
	require.False(t, ok)
}

func TestNormalizeFamilyName(t *testing.T) {
	require.Equal(t, "cpu_cstate", NormalizeFamilyName("cpu-cstate"))
	require.Equal(t, "a1b2", NormalizeFamilyName("a1b2"))
}
