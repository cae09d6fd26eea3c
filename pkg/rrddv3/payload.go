// Package rrddv3 implements the framed binary MetricSet payload exchanged
// via the RRDD v3 shared-memory protocol: a 28-byte envelope (magic,
// checksum, timestamp, length) wrapping a binary-serialized MetricSet. The
// envelope framing follows the same magic+checksum+length discipline used
// throughout this module's other binary formats; the payload schema below
// is this package's own TLV encoding of the shared pkg/metrics model.
package rrddv3

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

func newFamilyForDecode(t metrics.MetricType, unit, help string) *metrics.MetricFamily {
	return &metrics.MetricFamily{
		MetricType: t,
		Unit:       unit,
		Help:       help,
		Metrics:    make(map[uuid.UUID]*metrics.Metric),
	}
}

func uuidFromBytes(b []byte) (uuid.UUID, error) {
	return uuid.FromBytes(b)
}

func unixTime(sec int64, nsec int32) time.Time {
	return time.Unix(sec, int64(nsec)).UTC()
}

// valueKind tags which MetricValue shape follows a MetricPoint's header.
type valueKind uint8

const (
	vkUnknown valueKind = iota
	vkGauge
	vkCounter
	vkHistogram
	vkStateSet
	vkInfo
	vkSummary
)

func valueKindFor(t metrics.MetricType) valueKind {
	switch t {
	case metrics.TypeGauge:
		return vkGauge
	case metrics.TypeCounter:
		return vkCounter
	case metrics.TypeHistogram, metrics.TypeGaugeHistogram:
		return vkHistogram
	case metrics.TypeStateSet:
		return vkStateSet
	case metrics.TypeInfo:
		return vkInfo
	case metrics.TypeSummary:
		return vkSummary
	default:
		return vkUnknown
	}
}

func writeNumberValue(buf *bytes.Buffer, n metrics.NumberValue) {
	buf.WriteByte(byte(n.Kind))
	var bits uint64
	switch n.Kind {
	case metrics.KindDouble:
		bits = math.Float64bits(n.Double)
	case metrics.KindInt64:
		bits = uint64(n.Int64)
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], bits)
	buf.Write(b[:])
}

func readNumberValue(r *bytes.Reader) (metrics.NumberValue, error) {
	kindB, err := r.ReadByte()
	if err != nil {
		return metrics.NumberValue{}, err
	}
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return metrics.NumberValue{}, err
	}
	bits := binary.BigEndian.Uint64(b[:])
	switch metrics.NumberValueKind(kindB) {
	case metrics.KindDouble:
		return metrics.Double(math.Float64frombits(bits)), nil
	case metrics.KindInt64:
		return metrics.Int64Value(int64(bits)), nil
	default:
		return metrics.NumberValue{}, nil
	}
}

func writeString(buf *bytes.Buffer, s string) {
	var lenB [4]byte
	binary.BigEndian.PutUint32(lenB[:], uint32(len(s)))
	buf.Write(lenB[:])
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var lenB [4]byte
	if _, err := io.ReadFull(r, lenB[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint32(lenB[:])
	s := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, s); err != nil {
			return "", err
		}
	}
	return string(s), nil
}

func writeLabels(buf *bytes.Buffer, labels []metrics.Label) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(labels)))
	buf.Write(n[:])
	for _, l := range labels {
		writeString(buf, l.Name)
		writeString(buf, l.Value)
	}
}

func readLabels(r *bytes.Reader) ([]metrics.Label, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(n[:])
	if count == 0 {
		return nil, nil
	}
	labels := make([]metrics.Label, count)
	for i := range labels {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		val, err := readString(r)
		if err != nil {
			return nil, err
		}
		labels[i] = metrics.Label{Name: name, Value: val}
	}
	return labels, nil
}

func writeTimestamp(buf *bytes.Buffer, sec int64, nsec int32) {
	var b [12]byte
	binary.BigEndian.PutUint64(b[:8], uint64(sec))
	binary.BigEndian.PutUint32(b[8:], uint32(nsec))
	buf.Write(b[:])
}

func readTimestamp(r *bytes.Reader) (int64, int32, error) {
	var b [12]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, 0, err
	}
	return int64(binary.BigEndian.Uint64(b[:8])), int32(binary.BigEndian.Uint32(b[8:])), nil
}

func writeMetricValue(buf *bytes.Buffer, v metrics.MetricValue) {
	kind := valueKindFor(v.Type)
	buf.WriteByte(byte(kind))
	switch kind {
	case vkUnknown, vkGauge:
		writeNumberValue(buf, v.Number)
	case vkCounter:
		writeNumberValue(buf, v.Total)
		if v.Created != nil {
			buf.WriteByte(1)
			writeTimestamp(buf, v.Created.Unix(), int32(v.Created.Nanosecond()))
		} else {
			buf.WriteByte(0)
		}
		writeExemplar(buf, v.Exemplar)
	case vkHistogram:
		writeFloat64(buf, v.Sum)
		writeUint64(buf, v.Count)
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(v.Buckets)))
		buf.Write(n[:])
		for _, b := range v.Buckets {
			writeUint64(buf, b.Count)
			writeFloat64(buf, b.UpperBound)
			writeExemplar(buf, b.Exemplar)
		}
	case vkStateSet:
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(v.States)))
		buf.Write(n[:])
		for _, s := range v.States {
			if s.Enabled {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
			writeString(buf, s.Name)
		}
	case vkInfo:
		writeLabels(buf, v.InfoLabels)
	case vkSummary:
		writeFloat64(buf, v.Sum)
		writeUint64(buf, v.Count)
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(v.Quantiles)))
		buf.Write(n[:])
		for _, q := range v.Quantiles {
			writeFloat64(buf, q.Quantile)
			writeFloat64(buf, q.Value)
		}
	}
}

func writeExemplar(buf *bytes.Buffer, e *metrics.Exemplar) {
	if e == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeLabels(buf, e.Labels)
	writeFloat64(buf, e.Value)
	if e.Timestamp != nil {
		buf.WriteByte(1)
		writeTimestamp(buf, e.Timestamp.Unix(), int32(e.Timestamp.Nanosecond()))
	} else {
		buf.WriteByte(0)
	}
}

func writeFloat64(buf *bytes.Buffer, f float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(f))
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readFloat64(r *bytes.Reader) (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readExemplar(r *bytes.Reader) (*metrics.Exemplar, error) {
	present, err := r.ReadByte()
	if err != nil || present == 0 {
		return nil, err
	}
	labels, err := readLabels(r)
	if err != nil {
		return nil, err
	}
	val, err := readFloat64(r)
	if err != nil {
		return nil, err
	}
	ex := &metrics.Exemplar{Labels: labels, Value: val}
	hasTs, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if hasTs == 1 {
		sec, nsec, err := readTimestamp(r)
		if err != nil {
			return nil, err
		}
		t := unixTime(sec, nsec)
		ex.Timestamp = &t
	}
	return ex, nil
}

func readMetricValue(r *bytes.Reader, familyType metrics.MetricType) (metrics.MetricValue, error) {
	kindB, err := r.ReadByte()
	if err != nil {
		return metrics.MetricValue{}, err
	}
	v := metrics.MetricValue{Type: familyType}
	switch valueKind(kindB) {
	case vkUnknown, vkGauge:
		n, err := readNumberValue(r)
		if err != nil {
			return v, err
		}
		v.Number = n
	case vkCounter:
		total, err := readNumberValue(r)
		if err != nil {
			return v, err
		}
		v.Total = total
		hasCreated, err := r.ReadByte()
		if err != nil {
			return v, err
		}
		if hasCreated == 1 {
			sec, nsec, err := readTimestamp(r)
			if err != nil {
				return v, err
			}
			t := unixTime(sec, nsec)
			v.Created = &t
		}
		ex, err := readExemplar(r)
		if err != nil {
			return v, err
		}
		v.Exemplar = ex
	case vkHistogram:
		sum, err := readFloat64(r)
		if err != nil {
			return v, err
		}
		count, err := readUint64(r)
		if err != nil {
			return v, err
		}
		v.Sum, v.Count = sum, count
		var n [4]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return v, err
		}
		nb := binary.BigEndian.Uint32(n[:])
		v.Buckets = make([]metrics.Bucket, nb)
		for i := range v.Buckets {
			c, err := readUint64(r)
			if err != nil {
				return v, err
			}
			ub, err := readFloat64(r)
			if err != nil {
				return v, err
			}
			ex, err := readExemplar(r)
			if err != nil {
				return v, err
			}
			v.Buckets[i] = metrics.Bucket{Count: c, UpperBound: ub, Exemplar: ex}
		}
	case vkStateSet:
		var n [4]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return v, err
		}
		nb := binary.BigEndian.Uint32(n[:])
		v.States = make([]metrics.State, nb)
		for i := range v.States {
			enabledB, err := r.ReadByte()
			if err != nil {
				return v, err
			}
			name, err := readString(r)
			if err != nil {
				return v, err
			}
			v.States[i] = metrics.State{Enabled: enabledB == 1, Name: name}
		}
	case vkInfo:
		labels, err := readLabels(r)
		if err != nil {
			return v, err
		}
		v.InfoLabels = labels
	case vkSummary:
		sum, err := readFloat64(r)
		if err != nil {
			return v, err
		}
		count, err := readUint64(r)
		if err != nil {
			return v, err
		}
		v.Sum, v.Count = sum, count
		var n [4]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return v, err
		}
		nb := binary.BigEndian.Uint32(n[:])
		v.Quantiles = make([]metrics.Quantile, nb)
		for i := range v.Quantiles {
			q, err := readFloat64(r)
			if err != nil {
				return v, err
			}
			val, err := readFloat64(r)
			if err != nil {
				return v, err
			}
			v.Quantiles[i] = metrics.Quantile{Quantile: q, Value: val}
		}
	}
	return v, nil
}

// EncodePayload serializes a MetricSet into this package's binary TLV
// schema (the payload carried inside the v3 envelope, see envelope.go).
func EncodePayload(set *metrics.MetricSet) []byte {
	buf := &bytes.Buffer{}
	var famCount [4]byte
	binary.BigEndian.PutUint32(famCount[:], uint32(len(set.Families)))
	buf.Write(famCount[:])

	for name, fam := range set.Families {
		writeString(buf, name)
		buf.WriteByte(byte(fam.MetricType))
		writeString(buf, fam.Unit)
		writeString(buf, fam.Help)

		var metricCount [4]byte
		binary.BigEndian.PutUint32(metricCount[:], uint32(len(fam.Metrics)))
		buf.Write(metricCount[:])

		for id, m := range fam.Metrics {
			idBytes, _ := id.MarshalBinary()
			buf.Write(idBytes)
			writeLabels(buf, m.Labels)

			var pointCount [4]byte
			binary.BigEndian.PutUint32(pointCount[:], uint32(len(m.MetricsPoint)))
			buf.Write(pointCount[:])
			for _, p := range m.MetricsPoint {
				writeTimestamp(buf, p.Timestamp.Unix(), int32(p.Timestamp.Nanosecond()))
				writeMetricValue(buf, p.Value)
			}
		}
	}
	return buf.Bytes()
}

// DecodePayload is the inverse of EncodePayload.
func DecodePayload(payload []byte) (*metrics.MetricSet, error) {
	r := bytes.NewReader(payload)
	set := metrics.NewMetricSet()

	var famCount [4]byte
	if _, err := io.ReadFull(r, famCount[:]); err != nil {
		return nil, fmt.Errorf("rrddv3: %w", err)
	}
	nFam := binary.BigEndian.Uint32(famCount[:])

	for i := uint32(0); i < nFam; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		typeB, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		unit, err := readString(r)
		if err != nil {
			return nil, err
		}
		help, err := readString(r)
		if err != nil {
			return nil, err
		}
		famType := metrics.MetricType(typeB)
		realFam := newFamilyForDecode(famType, unit, help)

		var metricCount [4]byte
		if _, err := io.ReadFull(r, metricCount[:]); err != nil {
			return nil, err
		}
		nMetrics := binary.BigEndian.Uint32(metricCount[:])

		for j := uint32(0); j < nMetrics; j++ {
			idBytes := make([]byte, 16)
			if _, err := io.ReadFull(r, idBytes); err != nil {
				return nil, err
			}
			id, err := uuidFromBytes(idBytes)
			if err != nil {
				return nil, err
			}
			labels, err := readLabels(r)
			if err != nil {
				return nil, err
			}

			var pointCount [4]byte
			if _, err := io.ReadFull(r, pointCount[:]); err != nil {
				return nil, err
			}
			nPoints := binary.BigEndian.Uint32(pointCount[:])
			points := make([]metrics.MetricPoint, nPoints)
			for k := uint32(0); k < nPoints; k++ {
				sec, nsec, err := readTimestamp(r)
				if err != nil {
					return nil, err
				}
				val, err := readMetricValue(r, famType)
				if err != nil {
					return nil, err
				}
				points[k] = metrics.MetricPoint{Value: val, Timestamp: unixTime(sec, nsec)}
			}
			realFam.Metrics[id] = &metrics.Metric{Labels: labels, MetricsPoint: points}
		}
		set.Families[name] = realFam
	}
	return set, nil
}
