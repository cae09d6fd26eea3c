package metrics

import (
	"github.com/google/uuid"
)

// labelKey turns an ordered label slice into a comparable map key.
// Equality is position-sensitive, matching the spec's definition of label
// set equality, so the key is built by concatenating name=value pairs in
// slice order rather than sorting them.
func labelKey(labels []Label) string {
	key := make([]byte, 0, 32)
	for _, l := range labels {
		key = append(key, l.Name...)
		key = append(key, '=')
		key = append(key, l.Value...)
		key = append(key, ';')
	}
	return string(key)
}

// metricIdentity is the (family_name, labels) pair that uniquely identifies
// a metric, independent of its UUID.
type metricIdentity struct {
	family string
	labels string
}

// DeltaEngine holds the state a producer tracks between ticks: the set of
// families it has announced, and a mapping from (family, labels) identity to
// the UUID it last assigned.
//
// DeltaEngine is not safe for concurrent use; each producer owns exactly one
// instance.
type DeltaEngine struct {
	families  map[string]bool
	metricMap map[metricIdentity]uuid.UUID
}

// NewDeltaEngine returns an empty engine, i.e. one tracking no families and
// no metrics, matching the state of a producer that has never ticked.
func NewDeltaEngine() *DeltaEngine {
	return &DeltaEngine{
		families:  make(map[string]bool),
		metricMap: make(map[metricIdentity]uuid.UUID),
	}
}

// AddedMetric pairs a newly observed (family, metric) with the UUID that
// will be assigned to it by ApplyDelta.
type AddedMetric struct {
	Family string
	Metric *Metric
	UUID   uuid.UUID
}

// Delta is the four-set description of the difference between a producer's
// tracked model and its newest snapshot.
type Delta struct {
	AddedFamilies    []string
	OrphanedFamilies []string
	AddedMetrics     []AddedMetric
	RemovedMetrics   []uuid.UUID
}

// IsEmpty reports whether the delta carries no changes at all, which is the
// minimality property required by the spec: computing a delta against the
// engine's own current view must always yield an empty delta.
func (d Delta) IsEmpty() bool {
	return len(d.AddedFamilies) == 0 && len(d.OrphanedFamilies) == 0 &&
		len(d.AddedMetrics) == 0 && len(d.RemovedMetrics) == 0
}

// ComputeDelta compares newSet against the engine's tracked state and
// returns the four-set delta described in spec §4.1. It does not mutate the
// engine; call ApplyDelta with the result to advance the tracked state.
func (e *DeltaEngine) ComputeDelta(newSet *MetricSet) Delta {
	var d Delta

	for name := range newSet.Families {
		if !e.families[name] {
			d.AddedFamilies = append(d.AddedFamilies, name)
		}
	}
	for name := range e.families {
		if _, ok := newSet.Families[name]; !ok {
			d.OrphanedFamilies = append(d.OrphanedFamilies, name)
		}
	}

	seen := make(map[metricIdentity]bool, len(e.metricMap))
	for famName, fam := range newSet.Families {
		for _, m := range fam.Metrics {
			id := metricIdentity{family: famName, labels: labelKey(m.Labels)}
			seen[id] = true
			if _, ok := e.metricMap[id]; !ok {
				d.AddedMetrics = append(d.AddedMetrics, AddedMetric{
					Family: famName,
					Metric: m,
					UUID:   uuid.New(),
				})
			}
		}
	}

	for id, u := range e.metricMap {
		if !seen[id] {
			d.RemovedMetrics = append(d.RemovedMetrics, u)
		}
	}

	return d
}

// ApplyDelta is the inverse mutator of ComputeDelta: it advances the
// engine's tracked state to match the snapshot the delta was computed
// against. Removed UUIDs are dropped, orphaned families are discarded, and
// each added metric is recorded under the UUID the delta assigned it.
//
// After ApplyDelta(ComputeDelta(X)), the next ComputeDelta(X) must be empty
// (delta soundness, spec §8 property 4).
func (e *DeltaEngine) ApplyDelta(d Delta) {
	for _, name := range d.AddedFamilies {
		e.families[name] = true
	}
	for _, name := range d.OrphanedFamilies {
		delete(e.families, name)
	}
	for _, added := range d.AddedMetrics {
		id := metricIdentity{family: added.Family, labels: labelKey(added.Metric.Labels)}
		e.metricMap[id] = added.UUID
	}
	removed := make(map[uuid.UUID]bool, len(d.RemovedMetrics))
	for _, u := range d.RemovedMetrics {
		removed[u] = true
	}
	if len(removed) > 0 {
		for id, u := range e.metricMap {
			if removed[u] {
				delete(e.metricMap, id)
			}
		}
	}
}

// UUIDFor returns the UUID the engine has recorded for (family, labels), if
// any. Typed producers use this on every tick to address UpdateMetric
// messages by the UUID the hub already knows.
func (e *DeltaEngine) UUIDFor(family string, labels []Label) (uuid.UUID, bool) {
	u, ok := e.metricMap[metricIdentity{family: family, labels: labelKey(labels)}]
	return u, ok
}
