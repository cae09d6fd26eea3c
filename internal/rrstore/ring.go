// Package rrstore implements the round-robin multi-resolution time-series
// store (spec §4.7): four fixed-size f64 rings per metric, fed by a 5 s
// tick over the hub's current snapshot. Layout follows cc-backend's
// on-disk/in-memory buffer conventions (pkg/metricstore/buffer.go), adapted
// from a growable linked chain of large buffers to a small fixed-size
// circular slot array per granularity.
package rrstore

import "math"

// Ring is a fixed-capacity circular buffer of float64 samples (spec §4.7):
// push writes at pos then advances pos mod size; iteration starts at pos,
// wraps once, and stops just before re-reading pos.
type Ring struct {
	data []float64
	pos  int
	full bool // true once every slot has been written at least once
}

// NewRing returns a ring of the given size, every slot initialized to NaN
// (the documented stand-in for "never written").
func NewRing(size int) *Ring {
	data := make([]float64, size)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Ring{data: data}
}

// Push writes v at pos and advances pos.
func (r *Ring) Push(v float64) {
	r.data[r.pos] = v
	r.pos = (r.pos + 1) % len(r.data)
	if r.pos == 0 {
		r.full = true
	}
}

// Size reports the ring's fixed slot count.
func (r *Ring) Size() int { return len(r.data) }

// Snapshot returns samples oldest-to-newest. Before the ring has wrapped
// once, unwritten slots at the tail are NaN rather than omitted, so the
// returned slice is always exactly Size() long (spec §8 boundary: "5 s
// ring tail equals [0..12) padded by NaN to 120").
func (r *Ring) Snapshot() []float64 {
	out := make([]float64, len(r.data))
	if !r.full {
		copy(out, r.data)
		return out
	}
	n := copy(out, r.data[r.pos:])
	copy(out[n:], r.data[:r.pos])
	return out
}
