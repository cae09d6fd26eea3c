// Package legacymap converts an RRDD v2 DataSource into a typed Metric,
// following the two strategies documented in spec §4.10: a positional
// "default" mapping and a placeholder-substituting "pattern" mapping used
// for predefined per-family tables (e.g. legacy CPU C-state/frequency
// families). The declarative defaults-table style mirrors this module's own
// config-defaults convention.
package legacymap

import (
	"strings"

	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
	"github.com/xcp-ng/xcp-metrics-go/pkg/rrddv2"
)

// Strategy selects which mapping a producer applies to a given DataSource
// name.
type Strategy int

const (
	StrategyDefault Strategy = iota
	StrategyPattern
)

// PatternRule is one predefined table entry for StrategyPattern: a source
// name is matched verbatim, and Pattern substitutes `{label}` placeholders
// from the DataSource's labels (the owner label MapDefault derives from its
// metadata) to produce the final metric name.
type PatternRule struct {
	SourceName string
	Pattern    string
	Min        float64
	Max        float64
	Default    float64
}

// ownerLabel returns the single label (if any) implied by an Owner, mirrorring
// the v2 metadata's owner field collapsed into a label for typed export.
func ownerLabel(o rrddv2.Owner) (metrics.Label, bool) {
	switch o.Kind {
	case rrddv2.OwnerVM:
		return metrics.Label{Name: "vm", Value: o.UUID}, true
	case rrddv2.OwnerSR:
		return metrics.Label{Name: "sr", Value: o.UUID}, true
	default:
		return metrics.Label{}, false
	}
}

func metricTypeForSourceType(st rrddv2.SourceType) (metrics.MetricType, bool) {
	switch st {
	case rrddv2.SourceGauge:
		return metrics.TypeGauge, true
	case rrddv2.SourceAbsolute:
		return metrics.TypeCounter, true
	default:
		// "derive" and anything else: not representable as a stable typed
		// metric without rate computation the legacy reader doesn't do.
		return metrics.TypeUnknown, false
	}
}

// DefaultExportName produces `family[_labelvalue]*` with the owner label
// removed from the label set used for name composition, per spec §4.10.
func DefaultExportName(family string, labels []metrics.Label) string {
	var b strings.Builder
	b.WriteString(family)
	for _, l := range labels {
		if l.Name == "owner" {
			continue
		}
		b.WriteByte('_')
		b.WriteString(l.Value)
	}
	return metrics.NormalizeFamilyName(b.String())
}

// MapDefault converts one DataSource (by name) into its family name, typed
// MetricType, and label set (the owner label, if any), per the default
// strategy.
// ok is false when the source type has no typed representation (spec: type
// maps gauge→Gauge, absolute→Counter, other→skipped).
func MapDefault(name string, meta rrddv2.DataSourceMeta) (family string, mtype metrics.MetricType, labels []metrics.Label, ok bool) {
	mtype, ok = metricTypeForSourceType(meta.Type)
	if !ok {
		return "", metrics.TypeUnknown, nil, false
	}
	family = metrics.NormalizeFamilyName(name)
	if lbl, has := ownerLabel(meta.Owner); has {
		labels = []metrics.Label{lbl}
	}
	return family, mtype, labels, true
}

// ApplyPattern substitutes `{label}` placeholders in rule.Pattern using the
// supplied labels, leaving unresolved placeholders verbatim, then normalizes
// the result via metrics.NormalizeFamilyName — matching the worked example
// in spec §8 ("cpu{id}-C{state}" → "cpu0_C3" after normalization).
func ApplyPattern(rule PatternRule, labels []metrics.Label) string {
	out := rule.Pattern
	for _, l := range labels {
		out = strings.ReplaceAll(out, "{"+l.Name+"}", l.Value)
	}
	return metrics.NormalizeFamilyName(out)
}

// BuildNumberValue converts a decoded v2 raw slot into a NumberValue,
// matching metadata's declared value_type (Int64, Double, or Undefined).
func BuildNumberValue(vt rrddv2.ValueType, raw [8]byte) metrics.NumberValue {
	isInt, f, i := rrddv2.DecodeValue(raw, vt)
	if vt == rrddv2.ValueTypeUndefined {
		return metrics.NumberValue{}
	}
	if isInt {
		return metrics.Int64Value(i)
	}
	return metrics.Double(f)
}
