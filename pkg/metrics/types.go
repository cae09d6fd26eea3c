// Package metrics implements the typed, family-oriented metric model shared
// by every producer, the hub, the round-robin store, and the exporters: the
// family-oriented data model. UUIDs are allocated by whoever constructs a new
// Metric (always producer-side); the hub only ever recognizes them.
package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Label is an ordered (name, value) pair. Label sets are immutable ordered
// sequences; equality between two label sets is position-sensitive.
type Label struct {
	Name  string
	Value string
}

// MetricType classifies a MetricFamily and constrains the MetricValue variant
// legal for its members.
type MetricType int

const (
	TypeUnknown MetricType = iota
	TypeGauge
	TypeCounter
	TypeStateSet
	TypeInfo
	TypeHistogram
	TypeGaugeHistogram
	TypeSummary
)

func (t MetricType) String() string {
	switch t {
	case TypeGauge:
		return "gauge"
	case TypeCounter:
		return "counter"
	case TypeStateSet:
		return "stateset"
	case TypeInfo:
		return "info"
	case TypeHistogram:
		return "histogram"
	case TypeGaugeHistogram:
		return "gaugehistogram"
	case TypeSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// NumberValueKind tags which variant of NumberValue is populated.
type NumberValueKind int

const (
	KindUndefined NumberValueKind = iota
	KindDouble
	KindInt64
)

// NumberValue is the tagged union Double(f64) | Int64(i64) | Undefined.
// Undefined is the zero value; encoders map it to a type-appropriate
// sentinel (NaN for doubles, 0 for ints).
type NumberValue struct {
	Kind   NumberValueKind
	Double float64
	Int64  int64
}

// Double constructs a Double-kind NumberValue.
func Double(v float64) NumberValue { return NumberValue{Kind: KindDouble, Double: v} }

// Int64Value constructs an Int64-kind NumberValue.
func Int64Value(v int64) NumberValue { return NumberValue{Kind: KindInt64, Int64: v} }

// AsFloat64 returns the NumberValue as a float64, mapping Undefined to NaN.
func (n NumberValue) AsFloat64() float64 {
	switch n.Kind {
	case KindDouble:
		return n.Double
	case KindInt64:
		return float64(n.Int64)
	default:
		return math.NaN()
	}
}

// Exemplar attaches an out-of-band observation (e.g. a trace id) to a
// Counter total or Histogram bucket.
type Exemplar struct {
	Labels    []Label
	Value     float64
	Timestamp *time.Time
}

// Bucket is one Histogram bucket: a cumulative count up to UpperBound.
type Bucket struct {
	Count      uint64
	UpperBound float64
	Exemplar   *Exemplar
}

// State is one member of a StateSet value.
type State struct {
	Enabled bool
	Name    string
}

// Quantile is one member of a Summary value.
type Quantile struct {
	Quantile float64
	Value    float64
}

// MetricValue is the tagged union of every value shape a Metric can carry.
// Only one of the embedded pointers/slices is meaningful per Type.
type MetricValue struct {
	Type MetricType

	// Unknown, Gauge
	Number NumberValue

	// Counter
	Total    NumberValue
	Created  *time.Time
	Exemplar *Exemplar

	// Histogram / GaugeHistogram
	Sum     float64
	Count   uint64
	Buckets []Bucket

	// StateSet
	States []State

	// Info
	InfoLabels []Label

	// Summary
	Quantiles []Quantile
}

// MetricPoint is a single timestamped observation of a metric.
type MetricPoint struct {
	Value     MetricValue
	Timestamp time.Time
}

// Metric is one label-distinct series within a family. In practice
// MetricsPoint holds a single newest point; the model allows multi-point
// batches for producers that buffer several observations per tick.
type Metric struct {
	Labels       []Label
	MetricsPoint []MetricPoint
}

// LatestPoint returns the newest point, or the zero value if none exist.
func (m *Metric) LatestPoint() (MetricPoint, bool) {
	if len(m.MetricsPoint) == 0 {
		return MetricPoint{}, false
	}
	return m.MetricsPoint[len(m.MetricsPoint)-1], true
}

// MetricFamily is a named group of metrics sharing type, unit, and help
// text, keyed by the UUID of each member metric.
type MetricFamily struct {
	MetricType MetricType
	Unit       string
	Help       string
	Metrics    map[uuid.UUID]*Metric
}

func newFamily(t MetricType, unit, help string) *MetricFamily {
	return &MetricFamily{
		MetricType: t,
		Unit:       unit,
		Help:       help,
		Metrics:    make(map[uuid.UUID]*Metric),
	}
}

// MetricSet is the top-level container: a mapping from normalized family
// name to MetricFamily.
type MetricSet struct {
	Families map[string]*MetricFamily
}

// NewMetricSet returns an empty MetricSet.
func NewMetricSet() *MetricSet {
	return &MetricSet{Families: make(map[string]*MetricFamily)}
}

// Clone returns a shallow copy of the outer MetricSet shell: a fresh
// Families map pointing at the same *MetricFamily values. Used by the hub to
// implement copy-on-write pull snapshots — callers that mutate a family must
// first clone that family (see hub package), never mutate through a shared
// snapshot.
func (s *MetricSet) Clone() *MetricSet {
	out := &MetricSet{Families: make(map[string]*MetricFamily, len(s.Families))}
	for name, fam := range s.Families {
		out.Families[name] = fam
	}
	return out
}

// normalizeNameByte maps one source byte to its family-name byte: letters
// and '_' pass through, digits and ':' pass through except in first
// position (where they are dropped), and every other byte becomes '_'.
func normalizeNameByte(b byte, first bool) (byte, bool) {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b == '_':
		return b, true
	case b >= '0' && b <= '9':
		return b, !first
	case b == ':':
		return b, !first
	default:
		return '_', true
	}
}

// NormalizeFamilyName maps an arbitrary source name to the OpenMetrics
// family-name charset `[A-Za-z_][A-Za-z0-9_:]*`, replacing every other byte
// with '_' and refusing a leading digit by dropping it rather than
// renumbering the string.
func NormalizeFamilyName(name string) string {
	out := make([]byte, 0, len(name))
	first := true
	for i := 0; i < len(name); i++ {
		if c, ok := normalizeNameByte(name[i], first); ok {
			out = append(out, c)
			first = false
		}
	}
	return string(out)
}

func (l Label) String() string {
	return fmt.Sprintf("%s=%q", l.Name, l.Value)
}
