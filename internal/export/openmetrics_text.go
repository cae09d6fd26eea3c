// Package export implements the consumer-facing serializers (spec §4.8):
// OpenMetrics text, OpenMetrics binary (reusing pkg/rrddv3's envelope), and
// (in pkg/rrdxml) the RRD-style XML export for the forwarded-HTTP path.
// There is no direct teacher analog for OpenMetrics text emission; the line
// grammar follows spec.md §4.8 directly.
package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

// labelsBlock renders a label slice as `{name="value",...}`, empty string
// when labels is empty (spec: bare metric name with no braces).
func labelsBlock(labels []metrics.Label) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s=%q", l.Name, l.Value)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// mergedLabelsBlock renders labels with one extra (name, value) pair
// appended, used by StateSet/Info lines that add a synthetic label.
func mergedLabelsBlock(labels []metrics.Label, extraName, extraValue string) string {
	merged := make([]metrics.Label, 0, len(labels)+1)
	merged = append(merged, labels...)
	merged = append(merged, metrics.Label{Name: extraName, Value: extraValue})
	return labelsBlock(merged)
}

func formatTimestamp(ts float64) string {
	if ts == 0 {
		return ""
	}
	return " " + strconv.FormatFloat(ts, 'f', 3, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteText renders set as an OpenMetrics 1.0.0 text document (spec §4.8).
// Families are visited in sorted name order so output is deterministic.
func WriteText(set *metrics.MetricSet) string {
	var b strings.Builder

	names := make([]string, 0, len(set.Families))
	for name := range set.Families {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fam := set.Families[name]
		writeFamilyText(&b, name, fam)
	}
	b.WriteString("# EOF\n")
	return b.String()
}

func writeFamilyText(b *strings.Builder, name string, fam *metrics.MetricFamily) {
	if fam.Unit != "" && !strings.HasSuffix(name, "_"+fam.Unit) {
		name += "_" + fam.Unit
	}
	fmt.Fprintf(b, "# TYPE %s %s\n", name, fam.MetricType.String())
	if fam.Unit != "" {
		fmt.Fprintf(b, "# UNIT %s %s\n", name, fam.Unit)
	}
	if fam.Help != "" {
		fmt.Fprintf(b, "# HELP %s %s\n", name, fam.Help)
	}

	ids := make([]string, 0, len(fam.Metrics))
	byID := make(map[string]*metrics.Metric, len(fam.Metrics))
	for id, m := range fam.Metrics {
		s := id.String()
		ids = append(ids, s)
		byID[s] = m
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := byID[id]
		point, ok := m.LatestPoint()
		if !ok {
			continue
		}
		writeMetricPointText(b, name, m.Labels, point)
	}
}

func writeMetricPointText(b *strings.Builder, name string, labels []metrics.Label, point metrics.MetricPoint) {
	ts := timestampSeconds(point)
	v := point.Value

	switch v.Type {
	case metrics.TypeGauge, metrics.TypeUnknown:
		fmt.Fprintf(b, "%s%s %s%s\n", name, labelsBlock(labels), formatFloat(v.Number.AsFloat64()), formatTimestamp(ts))

	case metrics.TypeCounter:
		line := fmt.Sprintf("%s_total%s %s", name, labelsBlock(labels), formatFloat(v.Total.AsFloat64()))
		if v.Exemplar != nil {
			line += fmt.Sprintf(" # %s %s", labelsBlock(v.Exemplar.Labels), formatFloat(v.Exemplar.Value))
		}
		b.WriteString(line + formatTimestamp(ts) + "\n")
		if v.Created != nil {
			fmt.Fprintf(b, "%s_created%s %s\n", name, labelsBlock(labels), formatFloat(float64(v.Created.Unix())))
		}

	case metrics.TypeHistogram, metrics.TypeGaugeHistogram:
		for _, bucket := range v.Buckets {
			le := strconv.FormatFloat(bucket.UpperBound, 'g', -1, 64)
			line := fmt.Sprintf("%s_bucket%s %d", name, mergedLabelsBlock(labels, "le", le), bucket.Count)
			if bucket.Exemplar != nil {
				line += fmt.Sprintf(" # %s %s", labelsBlock(bucket.Exemplar.Labels), formatFloat(bucket.Exemplar.Value))
			}
			b.WriteString(line + "\n")
		}
		fmt.Fprintf(b, "%s_count%s %d\n", name, labelsBlock(labels), v.Count)
		fmt.Fprintf(b, "%s_sum%s %s\n", name, labelsBlock(labels), formatFloat(v.Sum))

	case metrics.TypeStateSet:
		for _, state := range v.States {
			val := 0
			if state.Enabled {
				val = 1
			}
			fmt.Fprintf(b, "%s%s %d\n", name, mergedLabelsBlock(labels, "name", state.Name), val)
		}

	case metrics.TypeInfo:
		fmt.Fprintf(b, "%s_info%s 1\n", name, labelsBlock(append(append([]metrics.Label{}, labels...), v.InfoLabels...)))

	case metrics.TypeSummary:
		for _, q := range v.Quantiles {
			qs := strconv.FormatFloat(q.Quantile, 'g', -1, 64)
			fmt.Fprintf(b, "%s_bucket%s %s\n", name, mergedLabelsBlock(labels, "quantile", qs), formatFloat(q.Value))
		}
		fmt.Fprintf(b, "%s_count%s %d\n", name, labelsBlock(labels), v.Count)
		fmt.Fprintf(b, "%s_sum%s %s\n", name, labelsBlock(labels), formatFloat(v.Sum))
	}
}

// timestampSeconds extracts the "seconds.milliseconds" stamp for point,
// zero when there's nothing meaningful to emit.
func timestampSeconds(point metrics.MetricPoint) float64 {
	if point.Timestamp.IsZero() {
		return 0
	}
	return float64(point.Timestamp.UnixNano()) / 1e9
}
