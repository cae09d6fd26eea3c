// Package producer implements the tick-driven producer runtimes that feed
// the hub (spec §4.5): one per ingest source, each owning exactly one
// internal/hub client connection and exactly one pkg/metrics.DeltaEngine.
// Scheduling follows cc-backend's gocron worker-registration pattern
// (internal/taskmanager/metricPullWorker.go), generalized from one job per
// cluster to one job per producer.
package producer

import (
	"context"
	"fmt"

	"github.com/xcp-ng/xcp-metrics-go/internal/hub"
	"github.com/xcp-ng/xcp-metrics-go/internal/xlog"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

// Collector produces a complete MetricSet snapshot for one tick. Real
// collectors wrap hypercall/XenStore bindings (internal/xenctrl,
// internal/xenstore) or a shared-memory reader (pkg/rrddv2, pkg/rrddv3);
// DemoCollector stands in for both when no hypervisor is available.
type Collector interface {
	Collect(ctx context.Context) (*metrics.MetricSet, error)
}

// CollectorFunc adapts a plain function to Collector.
type CollectorFunc func(ctx context.Context) (*metrics.MetricSet, error)

func (f CollectorFunc) Collect(ctx context.Context) (*metrics.MetricSet, error) {
	return f(ctx)
}

// Producer ticks a Collector, computes the resulting delta against its own
// tracked state, and replays that delta onto the hub as a sequence of
// Send* calls, in the order the spec gives for a single tick: families
// first, then metric additions/updates, then removals, then orphaned
// families (spec §4.5).
type Producer struct {
	Name      string
	Hub       *hub.Hub
	Collector Collector
	delta     *metrics.DeltaEngine
}

// New returns a Producer ready to Tick; name is used only for log lines.
func New(name string, h *hub.Hub, c Collector) *Producer {
	return &Producer{Name: name, Hub: h, Collector: c, delta: metrics.NewDeltaEngine()}
}

// Tick runs one collect-diff-replay cycle. A Collector error is logged and
// the tick is skipped without advancing the delta engine's tracked state,
// so the next successful tick still computes a correct delta against the
// hub's last known-good state.
func (p *Producer) Tick(ctx context.Context) error {
	set, err := p.Collector.Collect(ctx)
	if err != nil {
		xlog.Warnf("producer %s: collect failed: %v", p.Name, err)
		return fmt.Errorf("producer %s: %w", p.Name, err)
	}

	d := p.delta.ComputeDelta(set)

	for _, name := range d.AddedFamilies {
		fam := set.Families[name]
		p.Hub.SendCreateFamily(hub.CreateFamily{
			Name: name, MetricType: fam.MetricType, Unit: fam.Unit, Help: fam.Help,
		})
	}

	for _, added := range d.AddedMetrics {
		p.Hub.SendRegisterMetrics(hub.RegisterMetrics{
			Family: added.Family, Metric: added.Metric, UUID: added.UUID,
		})
	}

	p.sendUpdatesForUnchangedIdentities(set)

	for _, u := range d.RemovedMetrics {
		p.Hub.SendUnregisterMetrics(hub.UnregisterMetrics{UUID: u})
	}
	for _, name := range d.OrphanedFamilies {
		p.Hub.SendRemoveFamily(hub.RemoveFamily{Name: name})
	}

	p.delta.ApplyDelta(d)
	return nil
}

// sendUpdatesForUnchangedIdentities pushes fresh points for every metric
// identity the engine already knew about before this tick (i.e. every
// metric NOT in the delta's AddedMetrics) — those were already registered
// with their current points by the AddedMetrics loop.
func (p *Producer) sendUpdatesForUnchangedIdentities(set *metrics.MetricSet) {
	for famName, fam := range set.Families {
		for _, m := range fam.Metrics {
			u, ok := p.delta.UUIDFor(famName, m.Labels)
			if !ok {
				continue // this identity is new this tick; already registered above.
			}
			p.Hub.SendUpdateMetrics(hub.UpdateMetrics{UUID: u, NewPoints: m.MetricsPoint})
		}
	}
}
