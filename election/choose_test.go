// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package election

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChooseIndexUniformDistribution(t *testing.T) {
	weights := []uint64{1, 1, 1, 1}
	counts := make([]int, len(weights))
	for i := uint64(0); i < 1000; i++ {
		var seed [8]byte
		binary.LittleEndian.PutUint64(seed[:], i)
		idx := ChooseIndex(weights, seed[:])
		counts[idx]++
	}
	for _, c := range counts {
		require.Greater(t, c, 150, "each bucket should get a roughly even share over 1000 samples")
	}
}

func TestChooseIndexWeightedFavorsHeavier(t *testing.T) {
	weights := []uint64{1, 99}
	counts := make([]int, len(weights))
	for i := uint64(0); i < 1000; i++ {
		var seed [8]byte
		binary.LittleEndian.PutUint64(seed[:], i)
		idx := ChooseIndex(weights, seed[:])
		counts[idx]++
	}
	require.Greater(t, counts[1], counts[0])
}

func TestChooseIndexDeterministic(t *testing.T) {
	weights := []uint64{10, 20, 30}
	seed := []byte("round-42")
	a := ChooseIndex(weights, seed)
	b := ChooseIndex(weights, seed)
	require.Equal(t, a, b)
}

func TestChooseIndexZeroWeightsReturnsFirst(t *testing.T) {
	require.Equal(t, 0, ChooseIndex([]uint64{0, 0, 0}, []byte("seed")))
}
