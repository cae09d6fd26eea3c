package producer

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/xcp-ng/xcp-metrics-go/internal/xenctrl"
	"github.com/xcp-ng/xcp-metrics-go/internal/xenstore"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

const demoDomid uint32 = 0

// DemoCollector samples a hypervisor-free domain-0 metric set through the
// xenctrl/xenstore contracts (internal/xenctrl, internal/xenstore), standing
// in for a live hypervisor binding so the rest of the pipeline (hub, ring
// store, exporters, RPC) can be exercised in this environment.
type DemoCollector struct {
	Host  string
	VCPUs int
	XC    xenctrl.Interface
	XS    xenstore.Interface

	start    time.Time
	lastSeen time.Time
	lastNs   map[uint32]uint64

	// uuids keeps metric identity stable across ticks so the delta engine
	// sees updates rather than churn-and-reappear on every collect.
	uuids map[string]uuid.UUID
}

// NewDemoCollector returns a collector backed by fake xenctrl/xenstore
// implementations reporting metrics for host with the given vCPU count.
func NewDemoCollector(host string, vcpus int) *DemoCollector {
	xs := xenstore.NewFake()
	_ = xs.Write(context.Background(), "/local/domain/0/vm", "dom0-"+host)

	return &DemoCollector{
		Host:     host,
		VCPUs:    vcpus,
		XC:       xenctrl.NewFake(vcpus),
		XS:       xs,
		start:    time.Now(),
		lastSeen: time.Now(),
		lastNs:   make(map[uint32]uint64),
		uuids:    make(map[string]uuid.UUID),
	}
}

func (c *DemoCollector) idFor(key string) uuid.UUID {
	if id, ok := c.uuids[key]; ok {
		return id
	}
	id := uuid.New()
	c.uuids[key] = id
	return id
}

func (c *DemoCollector) Collect(ctx context.Context) (*metrics.MetricSet, error) {
	now := time.Now()
	elapsed := now.Sub(c.start).Seconds()
	dt := now.Sub(c.lastSeen).Seconds()
	if dt <= 0 {
		dt = 1
	}
	hostLabel := []metrics.Label{{Name: "host", Value: c.Host}}

	set := metrics.NewMetricSet()

	domain, err := c.XC.GetDomainInfo(ctx, demoDomid)
	if err != nil {
		return nil, err
	}

	cpuFam := &metrics.MetricFamily{
		MetricType: metrics.TypeGauge,
		Unit:       "ratio",
		Help:       "Fraction of host CPU time in use, per vCPU.",
		Metrics:    make(map[uuid.UUID]*metrics.Metric),
	}
	for vcpu := uint32(0); vcpu <= domain.MaxVCPUID; vcpu++ {
		info, err := c.XC.GetVCpuInfo(ctx, demoDomid, vcpu)
		if err != nil {
			// Tolerate a transient hypercall failure by skipping this vCPU
			// for the tick rather than failing the whole collect.
			continue
		}

		deltaNs := info.CPUTimeNs - c.lastNs[vcpu]
		c.lastNs[vcpu] = info.CPUTimeNs
		load := float64(deltaNs) / (dt * 1e9)
		if load > 1 {
			load = 1
		}

		labels := append(append([]metrics.Label{}, hostLabel...), metrics.Label{Name: "vcpu", Value: strconv.FormatUint(uint64(vcpu), 10)})
		id := c.idFor("cpu_usage/" + strconv.FormatUint(uint64(vcpu), 10))
		cpuFam.Metrics[id] = &metrics.Metric{
			Labels: labels,
			MetricsPoint: []metrics.MetricPoint{{
				Timestamp: now,
				Value:     metrics.MetricValue{Type: metrics.TypeGauge, Number: metrics.Double(load)},
			}},
		}
	}
	set.Families["cpu_usage"] = cpuFam
	c.lastSeen = now

	phys, err := c.XC.PhysInfo(ctx)
	if err != nil {
		return nil, err
	}
	memFree := float64(phys.FreePages) * 4096
	memID := c.idFor("memory_free_bytes")
	set.Families["memory_free_bytes"] = &metrics.MetricFamily{
		MetricType: metrics.TypeGauge,
		Unit:       "bytes",
		Help:       "Free memory reported by the host balloon driver.",
		Metrics: map[uuid.UUID]*metrics.Metric{
			memID: {
				Labels: hostLabel,
				MetricsPoint: []metrics.MetricPoint{{
					Timestamp: now,
					Value:     metrics.MetricValue{Type: metrics.TypeGauge, Number: metrics.Double(memFree)},
				}},
			},
		},
	}

	vmUUID, err := c.XS.Read(ctx, "/local/domain/0/vm")
	if err != nil {
		vmUUID = "unknown"
	}
	uptimeLabels := append(append([]metrics.Label{}, hostLabel...), metrics.Label{Name: "vm", Value: vmUUID})
	uptimeID := c.idFor("host_uptime_seconds")
	set.Families["host_uptime_seconds"] = &metrics.MetricFamily{
		MetricType: metrics.TypeCounter,
		Unit:       "seconds",
		Help:       "Seconds since the collector started (stands in for host uptime).",
		Metrics: map[uuid.UUID]*metrics.Metric{
			uptimeID: {
				Labels: uptimeLabels,
				MetricsPoint: []metrics.MetricPoint{{
					Timestamp: now,
					Value:     metrics.MetricValue{Type: metrics.TypeCounter, Total: metrics.Double(elapsed)},
				}},
			},
		},
	}

	return set, nil
}
