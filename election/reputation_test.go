// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package election

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReputationWeightActiveVsInactive(t *testing.T) {
	cfg := DefaultReputationConfig()
	agg := ConsensusFrameAggregation{Config: cfg}
	history := []ConsensusFrameMetadata{
		{Proposer: "v1", Success: true},
		{Proposer: "v1", Success: true},
	}
	require.Equal(t, cfg.ActiveWeight, agg.GetWeight(history, "v1"))
	require.Equal(t, cfg.InactiveWeight, agg.GetWeight(history, "v2"))
}

func TestReputationWeightFailurePenalty(t *testing.T) {
	cfg := DefaultReputationConfig()
	agg := ConsensusFrameAggregation{Config: cfg}
	var history []ConsensusFrameMetadata
	for i := 0; i < 10; i++ {
		history = append(history, ConsensusFrameMetadata{Proposer: "v1", Success: i < 7})
	}
	// 3/10 = 30% failure rate > 20% threshold
	require.Equal(t, cfg.FailedWeight, agg.GetWeight(history, "v1"))
}

func TestReputationWeightVotesCountAsActivity(t *testing.T) {
	cfg := DefaultReputationConfig()
	agg := ConsensusFrameAggregation{Config: cfg}
	history := []ConsensusFrameMetadata{
		{Proposer: "v2", Success: true, Voters: []string{"v1"}},
	}
	require.Equal(t, cfg.ActiveWeight, agg.GetWeight(history, "v1"))
}

func TestReputationWeightRespectsEpochCandidates(t *testing.T) {
	cfg := DefaultReputationConfig()
	agg := ConsensusFrameAggregation{
		Config:          cfg,
		EpochCandidates: map[string]struct{}{"v1": {}},
	}
	history := []ConsensusFrameMetadata{{Proposer: "v2", Success: true}}
	require.Equal(t, cfg.InactiveWeight, agg.GetWeight(history, "v2"))
}

func TestInMemoryMetadataBackendRingBuffer(t *testing.T) {
	backend := NewInMemoryMetadataBackend(2)
	backend.Record(ConsensusFrameMetadata{Round: 1})
	backend.Record(ConsensusFrameMetadata{Round: 2})
	backend.Record(ConsensusFrameMetadata{Round: 3})

	history, latest := backend.GetBlockMetadata(0, 0)
	require.Len(t, history, 2)
	require.Equal(t, uint64(3), latest)
	require.Equal(t, uint64(3), history[0].Round)
	require.Equal(t, uint64(2), history[1].Round)
}

func TestLeaderReputationSelectsFromCandidates(t *testing.T) {
	backend := NewInMemoryMetadataBackend(10)
	powers := map[string]uint64{"v1": 1, "v2": 1, "v3": 1}
	lr := NewLeaderReputation(backend, DefaultReputationConfig(), []string{"v1", "v2", "v3"}, powers, 0)

	proposer := lr.GetValidProposer(5)
	require.Contains(t, []string{"v1", "v2", "v3"}, proposer)
	require.True(t, lr.IsValidProposer(proposer, 5))
	require.Equal(t, uint64(1), lr.ContiguousRounds())
}

func TestLeaderReputationOnRoundCompletedFeedsBackend(t *testing.T) {
	backend := NewInMemoryMetadataBackend(10)
	powers := map[string]uint64{"v1": 1}
	lr := NewLeaderReputation(backend, DefaultReputationConfig(), []string{"v1"}, powers, 0)

	lr.OnRoundCompleted(1, "v1", true)
	history, _ := backend.GetBlockMetadata(0, 0)
	require.Len(t, history, 1)
	require.Equal(t, "v1", history[0].Proposer)
}
