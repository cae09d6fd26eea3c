package rrstore

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xcp-ng/xcp-metrics-go/internal/hub"
	"github.com/xcp-ng/xcp-metrics-go/internal/legacymap"
	"github.com/xcp-ng/xcp-metrics-go/pkg/metrics"
)

// Sizes overrides the four granularities' ring lengths; the zero value is
// the spec default (120/120/168/365).
type Sizes struct {
	FiveSecond int
	OneMinute  int
	OneHour    int
	OneDay     int
}

// DefaultSizes is spec §4.7's table: 10 min at 5 s, 2 h at 1 min, 1 week at
// 1 h, 1 year at 1 day.
var DefaultSizes = Sizes{FiveSecond: 120, OneMinute: 120, OneHour: 168, OneDay: 365}

// entry is the four rings kept for one metric UUID.
type entry struct {
	name    string // canonical export name, fixed at creation
	fiveSec *Ring
	oneMin  *Ring
	oneHour *Ring
	oneDay  *Ring
}

// Store is the tick-driven consumer task owning every ring (spec §4.7,
// §5): it is the sole reader performing 5 s snapshot pulls and the sole
// writer of ring contents. Entry creation follows cc-backend's
// double-checked-locking convention (pkg/metricstore/level.go's
// findLevelOrCreate), generalized from a growing hierarchical tree to a
// flat uuid-keyed registry of fixed-size rings.
type Store struct {
	hub   *hub.Hub
	sizes Sizes

	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
	ticks   uint64
}

// New returns a Store that will pull from h on every Tick.
func New(h *hub.Hub, sizes Sizes) *Store {
	if sizes.FiveSecond == 0 {
		sizes.FiveSecond = DefaultSizes.FiveSecond
	}
	if sizes.OneMinute == 0 {
		sizes.OneMinute = DefaultSizes.OneMinute
	}
	if sizes.OneHour == 0 {
		sizes.OneHour = DefaultSizes.OneHour
	}
	if sizes.OneDay == 0 {
		sizes.OneDay = DefaultSizes.OneDay
	}
	return &Store{hub: h, sizes: sizes, entries: make(map[uuid.UUID]*entry)}
}

func (s *Store) findOrCreate(id uuid.UUID, name string) *entry {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e
	}
	e = &entry{
		name:    name,
		fiveSec: NewRing(s.sizes.FiveSecond),
		oneMin:  NewRing(s.sizes.OneMinute),
		oneHour: NewRing(s.sizes.OneHour),
		oneDay:  NewRing(s.sizes.OneDay),
	}
	s.entries[id] = e
	return e
}

// scalarOf extracts the f64 a Gauge or Counter metric contributes to the
// rings (spec §4.7): Double→f64, Int64→cast, Undefined→NaN.
func scalarOf(famType metrics.MetricType, mv metrics.MetricValue) (float64, bool) {
	switch famType {
	case metrics.TypeGauge:
		return mv.Number.AsFloat64(), true
	case metrics.TypeCounter:
		return mv.Total.AsFloat64(), true
	default:
		return math.NaN(), false
	}
}

// Tick pulls the current snapshot from the hub and advances every ring
// exactly once (spec §4.7's tick loop). Call this on a 5 s cadence;
// cmd/xcp-metricsd drives it from a time.Ticker loop.
func (s *Store) Tick(ctx context.Context) error {
	set, err := s.hub.Pull(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ticks++
	tick := s.ticks
	s.mu.Unlock()

	for famName, fam := range set.Families {
		for id, m := range fam.Metrics {
			point, ok := m.LatestPoint()
			if !ok {
				continue
			}
			v, ok := scalarOf(fam.MetricType, point.Value)
			if !ok {
				continue // metric types other than Gauge/Counter are skipped.
			}

			name := legacymap.DefaultExportName(famName, m.Labels)
			e := s.findOrCreate(id, name)

			e.fiveSec.Push(v)
			if tick%12 == 0 {
				e.oneMin.Push(v)
			}
			if tick%720 == 0 {
				e.oneHour.Push(v)
			}
			if tick%17280 == 0 {
				e.oneDay.Push(v)
			}
		}
	}
	return nil
}

// Granularity selects which ring Export reads.
type Granularity int

const (
	FiveSeconds Granularity = iota
	OneMinute
	OneHour
	OneDay
)

func (g Granularity) step() time.Duration {
	switch g {
	case OneMinute:
		return time.Minute
	case OneHour:
		return time.Hour
	case OneDay:
		return 24 * time.Hour
	default:
		return 5 * time.Second
	}
}

func (e *entry) ring(g Granularity) *Ring {
	switch g {
	case OneMinute:
		return e.oneMin
	case OneHour:
		return e.oneHour
	case OneDay:
		return e.oneDay
	default:
		return e.fiveSec
	}
}

// RrdXport is the granularity-bound export shape spec §4.7 and §4.8 both
// name: a legend of column names alongside one row per time step.
type RrdXport struct {
	Start    time.Time
	End      time.Time
	StepSecs int
	Legend   []string
	Data     []RrdRow
}

// RrdRow is one time step's values, ordered to match RrdXport.Legend.
type RrdRow struct {
	Timestamp time.Time
	Values    []float64
}

// Export snapshots every metric's ring at the given granularity in
// parallel (spec §4.7): row i across all columns shares one timestamp,
// `end` minus `(size-1-i)*step`.
func (s *Store) Export(g Granularity) RrdXport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	step := g.step()
	legend := make([]string, 0, len(s.entries))
	snapshots := make([][]float64, 0, len(s.entries))
	for _, e := range s.entries {
		legend = append(legend, e.name)
		snapshots = append(snapshots, e.ring(g).Snapshot())
	}

	size := 0
	if len(snapshots) > 0 {
		size = len(snapshots[0])
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(size) * step)
	rows := make([]RrdRow, size)
	for i := 0; i < size; i++ {
		ts := end.Add(-time.Duration(size-1-i) * step)
		values := make([]float64, len(snapshots))
		for col, snap := range snapshots {
			values[col] = snap[i]
		}
		rows[i] = RrdRow{Timestamp: ts, Values: values}
	}

	return RrdXport{
		Start:    start,
		End:      end,
		StepSecs: int(step / time.Second),
		Legend:   legend,
		Data:     rows,
	}
}
