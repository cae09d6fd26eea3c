package rrstore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingPaddedBeforeWrap(t *testing.T) {
	r := NewRing(120)
	for i := 0; i < 12; i++ {
		r.Push(float64(i))
	}
	snap := r.Snapshot()
	require.Len(t, snap, 120)
	for i := 0; i < 12; i++ {
		require.Equal(t, float64(i), snap[i])
	}
	for i := 12; i < 120; i++ {
		require.True(t, math.IsNaN(snap[i]))
	}
}

func TestRingOrderAfterWrap(t *testing.T) {
	r := NewRing(4)
	for i := 0; i < 6; i++ {
		r.Push(float64(i))
	}
	// Slots hold [4,5,2,3] physically; oldest-to-newest is [2,3,4,5].
	require.Equal(t, []float64{2, 3, 4, 5}, r.Snapshot())
}

func TestRingCountAndSize(t *testing.T) {
	r := NewRing(5)
	require.Equal(t, 5, r.Size())
	require.Len(t, r.Snapshot(), 5)
}
