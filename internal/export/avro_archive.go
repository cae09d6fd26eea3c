package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/linkedin/goavro/v2"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

// avroSampleSchema is one flattened metric-point record: family, stable
// metric identity, its labels (as a JSON string, since Avro has no native
// free-form map-of-string type in a fixed record schema), the sample
// timestamp, and its scalar value.
const avroSampleSchema = `{
	"type": "record",
	"name": "MetricSample",
	"fields": [
		{"name": "family", "type": "string"},
		{"name": "metric_id", "type": "string"},
		{"name": "labels", "type": "string"},
		{"name": "timestamp", "type": "long"},
		{"name": "value", "type": "double"}
	]
}`

// WriteAvroOCF encodes the latest point of every metric in set as an Avro
// Object Container File: a self-describing binary archival format, offered
// as an alternative to the OpenMetrics text/binary encodings for tooling
// that consumes Avro (grounded on internal/memorystore/avroCheckpoint.go's
// goavro.NewCodec + goavro.NewOCFWriter usage, repurposed from job-metric
// checkpointing to a one-shot snapshot encode of the hub's current state;
// this daemon does not persist these files itself, so it stays inside
// spec.md's "no durable storage across restarts" Non-goal).
func WriteAvroOCF(set *metrics.MetricSet) ([]byte, error) {
	codec, err := goavro.NewCodec(avroSampleSchema)
	if err != nil {
		return nil, fmt.Errorf("avro: compile schema: %w", err)
	}

	var buf bytes.Buffer
	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               &buf,
		Codec:           codec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return nil, fmt.Errorf("avro: new OCF writer: %w", err)
	}

	records := avroRecords(set)
	if len(records) > 0 {
		if err := writer.Append(records); err != nil {
			return nil, fmt.Errorf("avro: append records: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func avroRecords(set *metrics.MetricSet) []any {
	var records []any
	for name, fam := range set.Families {
		for id, m := range fam.Metrics {
			if len(m.MetricsPoint) == 0 {
				continue
			}
			point := m.MetricsPoint[len(m.MetricsPoint)-1]
			v, ok := avroScalar(fam.MetricType, point.Value)
			if !ok {
				continue
			}
			labels, _ := json.Marshal(m.Labels)
			records = append(records, map[string]any{
				"family":    name,
				"metric_id": id.String(),
				"labels":    string(labels),
				"timestamp": point.Timestamp.UnixNano(),
				"value":     v,
			})
		}
	}
	return records
}

// avroScalar extracts a single representative value per family type, the
// same Gauge/Counter-only reduction rrstore uses for its rings.
func avroScalar(famType metrics.MetricType, v metrics.MetricValue) (float64, bool) {
	switch famType {
	case metrics.TypeGauge:
		return v.Number.AsFloat64(), true
	case metrics.TypeCounter:
		return v.Total.AsFloat64(), true
	default:
		return 0, false
	}
}
