// Package hub implements the single-owner metric hub task (spec §4.6): the
// sole writer of the authoritative MetricSet, serialized over one unbounded
// inbound channel. The channel-fed single-consumer goroutine pattern is
// adapted from cc-backend's WAL staging goroutine, generalized from a
// durability sink to the canonical owner of live state; the copy-on-write
// snapshot discipline follows the same copy-before-mutate convention used by
// cc-backend's hierarchical metric tree.
package hub

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xcp-ng/xcp-metrics-go/internal/xlog"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

// RegisterMetrics registers a metric under uuid in family, creating the
// family with default metadata if absent (spec §4.6). A prior entry under
// the same uuid is replaced.
type RegisterMetrics struct {
	Family string
	Metric *metrics.Metric
	UUID   uuid.UUID
}

// UnregisterMetrics removes the metric addressed by UUID from whichever
// family holds it; an empty family is dropped.
type UnregisterMetrics struct {
	UUID uuid.UUID
}

// UpdateMetrics swaps in a new point sequence for an already-registered
// metric, addressed by UUID. Unknown UUIDs are dropped silently (spec §4.6,
// §7: the producer may race with its own unregister).
type UpdateMetrics struct {
	UUID      uuid.UUID
	NewPoints []metrics.MetricPoint
}

// CreateFamily is idempotent: if the family exists its metadata is updated
// in place.
type CreateFamily struct {
	Name       string
	MetricType metrics.MetricType
	Unit       string
	Help       string
}

// RemoveFamily drops a family and every metric registered under it.
type RemoveFamily struct {
	Name string
}

// PullMetrics requests a point-in-time snapshot; the reply is a shared,
// immutable handle that survives subsequent hub mutations (spec §4.6,
// property 9).
type PullMetrics struct {
	Reply chan *metrics.MetricSet
}

// inboundMessage is the sum type carried on the hub's single inbound
// channel; ordering on that channel is the order of effects (spec §5).
type inboundMessage struct {
	register   *RegisterMetrics
	unregister *UnregisterMetrics
	update     *UpdateMetrics
	createFam  *CreateFamily
	removeFam  *RemoveFamily
	pull       *PullMetrics
}

// Hub is the single-owner actor. Construct with New and run with Run in its
// own goroutine; all mutation must go through the Send* methods, never by
// touching Hub's fields directly.
type Hub struct {
	inbox chan inboundMessage

	// uuidFamily tracks which family currently holds each uuid, so
	// UpdateMetrics/UnregisterMetrics need not scan every family (an
	// internal bookkeeping aid; spec §4.6 describes the logical O(families)
	// scan, this index makes the same operation O(1) without changing
	// observable semantics).
	uuidFamily map[uuid.UUID]string
	current    *metrics.MetricSet
}

// New returns a hub with an empty MetricSet and an inbox large enough to
// treat producer→hub traffic as effectively unbounded without unbounded
// heap growth under runaway producers; see spec §5 "Backpressure".
func New() *Hub {
	return &Hub{
		inbox:      make(chan inboundMessage, 65536),
		uuidFamily: make(map[uuid.UUID]string),
		current:    metrics.NewMetricSet(),
	}
}

// Run processes inbound messages until ctx is cancelled. It owns all
// mutation of the hub's state and must be invoked from exactly one
// goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.inbox:
			h.dispatch(msg)
		}
	}
}

func (h *Hub) dispatch(msg inboundMessage) {
	switch {
	case msg.createFam != nil:
		h.handleCreateFamily(*msg.createFam)
	case msg.removeFam != nil:
		h.handleRemoveFamily(*msg.removeFam)
	case msg.register != nil:
		h.handleRegister(*msg.register)
	case msg.update != nil:
		h.handleUpdate(*msg.update)
	case msg.unregister != nil:
		h.handleUnregister(*msg.unregister)
	case msg.pull != nil:
		h.handlePull(*msg.pull)
	}
}

// cloneFamily returns a shallow copy of fam suitable for in-place mutation
// without disturbing a snapshot a prior PullMetrics handed out.
func cloneFamily(fam *metrics.MetricFamily) *metrics.MetricFamily {
	out := &metrics.MetricFamily{
		MetricType: fam.MetricType,
		Unit:       fam.Unit,
		Help:       fam.Help,
		Metrics:    make(map[uuid.UUID]*metrics.Metric, len(fam.Metrics)),
	}
	for id, m := range fam.Metrics {
		out.Metrics[id] = m
	}
	return out
}

func (h *Hub) handleCreateFamily(msg CreateFamily) {
	h.current = h.current.Clone()
	if existing, ok := h.current.Families[msg.Name]; ok {
		updated := cloneFamily(existing)
		updated.MetricType = msg.MetricType
		updated.Unit = msg.Unit
		updated.Help = msg.Help
		h.current.Families[msg.Name] = updated
		return
	}
	h.current.Families[msg.Name] = &metrics.MetricFamily{
		MetricType: msg.MetricType,
		Unit:       msg.Unit,
		Help:       msg.Help,
		Metrics:    make(map[uuid.UUID]*metrics.Metric),
	}
}

func (h *Hub) handleRemoveFamily(msg RemoveFamily) {
	fam, ok := h.current.Families[msg.Name]
	if !ok {
		return
	}
	h.current = h.current.Clone()
	for id := range fam.Metrics {
		delete(h.uuidFamily, id)
	}
	delete(h.current.Families, msg.Name)
}

func (h *Hub) handleRegister(msg RegisterMetrics) {
	h.current = h.current.Clone()
	fam, ok := h.current.Families[msg.Family]
	if !ok {
		// Preserve registration order: create with defaults per spec §4.6.
		fam = &metrics.MetricFamily{MetricType: metrics.TypeUnknown, Metrics: make(map[uuid.UUID]*metrics.Metric)}
	} else {
		fam = cloneFamily(fam)
	}
	if _, replaced := fam.Metrics[msg.UUID]; replaced {
		xlog.Infof("hub: replacing existing metric entry for uuid %s in family %s", msg.UUID, msg.Family)
	}
	fam.Metrics[msg.UUID] = msg.Metric
	h.current.Families[msg.Family] = fam
	h.uuidFamily[msg.UUID] = msg.Family
}

func (h *Hub) handleUpdate(msg UpdateMetrics) {
	famName, ok := h.uuidFamily[msg.UUID]
	if !ok {
		return // unknown UUID: dropped silently, see spec §4.6/§7.
	}
	fam, ok := h.current.Families[famName]
	if !ok {
		return
	}
	existing, ok := fam.Metrics[msg.UUID]
	if !ok {
		return
	}

	h.current = h.current.Clone()
	updatedFam := cloneFamily(fam)
	updatedMetric := &metrics.Metric{Labels: existing.Labels, MetricsPoint: msg.NewPoints}
	updatedFam.Metrics[msg.UUID] = updatedMetric
	h.current.Families[famName] = updatedFam
}

func (h *Hub) handleUnregister(msg UnregisterMetrics) {
	famName, ok := h.uuidFamily[msg.UUID]
	if !ok {
		return
	}
	fam, ok := h.current.Families[famName]
	if !ok {
		return
	}

	h.current = h.current.Clone()
	updatedFam := cloneFamily(fam)
	delete(updatedFam.Metrics, msg.UUID)
	delete(h.uuidFamily, msg.UUID)

	if len(updatedFam.Metrics) == 0 {
		delete(h.current.Families, famName)
	} else {
		h.current.Families[famName] = updatedFam
	}
}

func (h *Hub) handlePull(msg PullMetrics) {
	select {
	case msg.Reply <- h.current:
	default:
		// Reply channel has no room (capacity 1, per spec §5) or the
		// caller has already gone away; dropping the pull is the
		// documented behavior rather than blocking the hub.
	}
}

// --- Client-facing send helpers -------------------------------------------
//
// Each Send* call is non-blocking relative to hub processing: it only
// blocks if the inbox itself is full, which is the backpressure point
// spec §5 calls out as the producer's own responsibility to pace.

func (h *Hub) SendCreateFamily(msg CreateFamily) {
	h.inbox <- inboundMessage{createFam: &msg}
}

func (h *Hub) SendRemoveFamily(msg RemoveFamily) {
	h.inbox <- inboundMessage{removeFam: &msg}
}

func (h *Hub) SendRegisterMetrics(msg RegisterMetrics) {
	h.inbox <- inboundMessage{register: &msg}
}

func (h *Hub) SendUpdateMetrics(msg UpdateMetrics) {
	h.inbox <- inboundMessage{update: &msg}
}

func (h *Hub) SendUnregisterMetrics(msg UnregisterMetrics) {
	h.inbox <- inboundMessage{unregister: &msg}
}

// Pull issues a PullMetrics request and waits for the reply, with an
// internal deadline matching spec §5 ("Request handlers use an internal
// deadline on channel receive"). On timeout it returns an error the RPC
// layer maps to -32603 "Unable to fetch metrics from hub".
func (h *Hub) Pull(ctx context.Context) (*metrics.MetricSet, error) {
	reply := make(chan *metrics.MetricSet, 1)
	h.inbox <- inboundMessage{pull: &PullMetrics{Reply: reply}}

	deadline := time.NewTimer(5 * time.Second)
	defer deadline.Stop()

	select {
	case set := <-reply:
		return set, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-deadline.C:
		return nil, ErrHubTimeout
	}
}
