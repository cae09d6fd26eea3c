// Package protocol implements the protocol v4 stream codec: length-prefixed
// CBOR frames exchanged between producers and the hub over a local stream
// socket (control-plane messages only; bulk metric data travels via C2/C3).
package protocol

import (
	"github.com/google/uuid"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

// FetchKind selects the encoding FetchMetrics asks the hub to reply with.
type FetchKind int

const (
	FetchOpenMetrics1 FetchKind = iota
	FetchOpenMetrics1Binary
)

// MessageKind tags which variant of Message is populated.
type MessageKind int

const (
	KindCreateFamily MessageKind = iota
	KindRemoveFamily
	KindUpdateMetric
	KindRemoveMetric
	KindFetchMetrics
)

// Message is the tagged union of every frame producers and the hub
// exchange. Exactly one payload field is meaningful, selected by Kind; this
// mirrors the Rust original's single wire enum while staying plain,
// CBOR-encodable Go.
type Message struct {
	Kind MessageKind `cbor:"kind"`

	// CreateFamily
	FamilyName string            `cbor:"family_name,omitempty"`
	MetricType metrics.MetricType `cbor:"metric_type,omitempty"`
	Unit       string            `cbor:"unit,omitempty"`
	Help       string            `cbor:"help,omitempty"`

	// UpdateMetric / RemoveMetric
	UUID   uuid.UUID      `cbor:"uuid,omitempty"`
	Metric *metrics.Metric `cbor:"metric,omitempty"`

	// FetchMetrics
	Fetch FetchKind `cbor:"fetch,omitempty"`
}

// CreateFamily builds a CreateFamily message.
func CreateFamily(name string, t metrics.MetricType, unit, help string) Message {
	return Message{Kind: KindCreateFamily, FamilyName: name, MetricType: t, Unit: unit, Help: help}
}

// RemoveFamily builds a RemoveFamily message.
func RemoveFamily(name string) Message {
	return Message{Kind: KindRemoveFamily, FamilyName: name}
}

// UpdateMetric builds an UpdateMetric message. The same shape also serves
// as "RegisterMetric" (spec §4.5): a fresh UUID paired with the first
// MetricPoint is simply an UpdateMetric the hub has never seen before.
func UpdateMetric(familyName string, uuid uuid.UUID, m *metrics.Metric) Message {
	return Message{Kind: KindUpdateMetric, FamilyName: familyName, UUID: uuid, Metric: m}
}

// RemoveMetric builds a RemoveMetric message.
func RemoveMetric(familyName string, uuid uuid.UUID) Message {
	return Message{Kind: KindRemoveMetric, FamilyName: familyName, UUID: uuid}
}

// FetchMetrics builds a FetchMetrics request.
func FetchMetrics(kind FetchKind) Message {
	return Message{Kind: KindFetchMetrics, Fetch: kind}
}
