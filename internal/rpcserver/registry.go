package rpcserver

import (
	"context"
	"sync"
	"time"

	"github.com/xcp-ng/xcp-metrics-go/internal/hub"
	"github.com/xcp-ng/xcp-metrics-go/internal/producer"
)

// runningProducer is one Plugin.Local/Plugin.Metrics registration's task
// handle: cancel stops the scheduler job backing it.
type runningProducer struct {
	cancel context.CancelFunc
}

// ProducerRegistry tracks running producer tasks by plugin name, guarded by
// a single mutex (spec §5: "Shared read-only configuration... is protected
// by a concurrent map").
type ProducerRegistry struct {
	hub   *hub.Hub
	sched *producer.Scheduler

	mu      sync.Mutex
	running map[string]*runningProducer
}

// NewProducerRegistry returns a registry that schedules producers onto
// sched and feeds them into hub.
func NewProducerRegistry(h *hub.Hub, sched *producer.Scheduler) *ProducerRegistry {
	return &ProducerRegistry{hub: h, sched: sched, running: make(map[string]*runningProducer)}
}

// RegisterLegacy starts a producer over c on a 5 s interval,
// unless one is already running for name (spec: "Start a legacy producer
// for the named plugin if not already running").
func (r *ProducerRegistry) RegisterLegacy(name string, c producer.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[name]; ok {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := producer.New(name, r.hub, c)
	if err := r.sched.Register(ctx, p, 5*time.Second); err != nil {
		cancel()
		return err
	}
	r.running[name] = &runningProducer{cancel: cancel}
	return nil
}

// RegisterTyped starts a typed producer the same way RegisterLegacy does;
// the two differ only in which Collector the caller supplies.
func (r *ProducerRegistry) RegisterTyped(name string, c producer.Collector) error {
	return r.RegisterLegacy(name, c)
}

// Deregister cancels the named producer's task. Absent names are a no-op
// (spec: "file cleanup is best-effort").
func (r *ProducerRegistry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rp, ok := r.running[name]
	if !ok {
		return
	}
	rp.cancel()
	delete(r.running, name)
}
