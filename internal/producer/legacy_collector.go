package producer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xcp-ng/xcp-metrics-go/internal/legacymap"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
	"github.com/xcp-ng/xcp-metrics-go/pkg/rrddv2"
)

// LegacyFileCollector reads a v2 shared-memory file on every tick and maps
// its DataSources into the typed metric model via internal/legacymap (spec
// §4.10), for producers that only have a legacy writer available (e.g. an
// unconverted plugin).
type LegacyFileCollector struct {
	Path     string
	Patterns map[string]legacymap.PatternRule // keyed by DataSource name

	// uuids keeps one stable identity per (family, source name) pair across
	// ticks; same purpose as DemoCollector's.
	uuids map[string]uuid.UUID
}

// NewLegacyFileCollector returns a collector reading path on every Collect,
// applying patterns (by source name) in place of the default strategy
// wherever a rule exists.
func NewLegacyFileCollector(path string, patterns map[string]legacymap.PatternRule) *LegacyFileCollector {
	return &LegacyFileCollector{Path: path, Patterns: patterns, uuids: make(map[string]uuid.UUID)}
}

func (c *LegacyFileCollector) idFor(key string) uuid.UUID {
	if id, ok := c.uuids[key]; ok {
		return id
	}
	id := uuid.New()
	c.uuids[key] = id
	return id
}

func (c *LegacyFileCollector) Collect(ctx context.Context) (*metrics.MetricSet, error) {
	hdr, md, err := rrddv2.ReadFile(c.Path)
	if err != nil {
		return nil, err
	}

	ts := time.Unix(int64(hdr.Timestamp), 0).UTC()
	set := metrics.NewMetricSet()

	for i, name := range md.Names {
		if i >= len(hdr.RawValues) {
			break // metadata/value count mismatch: nothing more to decode this tick.
		}
		meta := md.Sources[name]

		var family string
		var labels []metrics.Label
		var mtype metrics.MetricType

		if rule, ok := c.Patterns[name]; ok {
			_, mtype, labels, _ = legacymap.MapDefault(name, meta)
			family = legacymap.ApplyPattern(rule, labels)
		} else {
			var ok2 bool
			family, mtype, labels, ok2 = legacymap.MapDefault(name, meta)
			if !ok2 {
				continue // source type has no typed representation, see legacymap.MapDefault.
			}
		}

		value := legacymap.BuildNumberValue(meta.ValueType, hdr.RawValues[i])
		mv := metrics.MetricValue{Type: mtype}
		switch mtype {
		case metrics.TypeCounter:
			mv.Total = value
		default:
			mv.Number = value
		}

		fam, ok := set.Families[family]
		if !ok {
			fam = &metrics.MetricFamily{
				MetricType: mtype,
				Unit:       meta.Units,
				Help:       meta.Description,
				Metrics:    make(map[uuid.UUID]*metrics.Metric),
			}
			set.Families[family] = fam
		}

		id := c.idFor(family + "/" + name)
		fam.Metrics[id] = &metrics.Metric{
			Labels:       labels,
			MetricsPoint: []metrics.MetricPoint{{Timestamp: ts, Value: mv}},
		}
	}

	return set, nil
}
