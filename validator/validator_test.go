// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validator

import (
	"testing"

	"github.com/luxfi/anchor/types"
	"github.com/stretchr/testify/require"
)

func rotatingSet() *ValidatorSet {
	return New(ElectionStrategy{Kind: StrategyRotating, ContiguousRounds: 1})
}

func TestFirstValidatorIsLeader(t *testing.T) {
	vs := rotatingSet()
	vs.AddValidator(types.NewValidatorNode("v1", "addr1", 9000))
	require.Equal(t, "v1", vs.CurrentLeader())
	require.True(t, vs.IsLeader("v1"))
}

func TestQuorumCalculation(t *testing.T) {
	vs := rotatingSet()
	for _, id := range []string{"v1", "v2", "v3", "v4"} {
		vs.AddValidator(types.NewValidatorNode(id, "addr", 9000))
	}
	require.Equal(t, types.Quorum(4), vs.QuorumSize())
	require.Equal(t, 3, vs.QuorumSize())
}

func TestLeaderRotation(t *testing.T) {
	vs := rotatingSet()
	vs.AddValidator(types.NewValidatorNode("v1", "a", 9000))
	vs.AddValidator(types.NewValidatorNode("v2", "a", 9000))
	vs.AddValidator(types.NewValidatorNode("v3", "a", 9000))

	first := vs.CurrentLeader()
	vs.AdvanceRound(first, true)
	second := vs.CurrentLeader()
	require.NotEqual(t, first, second)
	vs.AdvanceRound(second, true)
	third := vs.CurrentLeader()
	require.NotEqual(t, second, third)
}

func TestContiguousRounds(t *testing.T) {
	vs := New(ElectionStrategy{Kind: StrategyRotating, ContiguousRounds: 2})
	vs.AddValidator(types.NewValidatorNode("v1", "a", 9000))
	vs.AddValidator(types.NewValidatorNode("v2", "a", 9000))

	require.Equal(t, vs.GetValidProposer(0), vs.GetValidProposer(1))
	require.NotEqual(t, vs.GetValidProposer(1), vs.GetValidProposer(2))
}

func TestIsValidProposer(t *testing.T) {
	vs := rotatingSet()
	vs.AddValidator(types.NewValidatorNode("v1", "a", 9000))
	vs.AddValidator(types.NewValidatorNode("v2", "a", 9000))
	round := vs.CurrentRound()
	proposer := vs.GetValidProposer(round)
	require.True(t, vs.IsValidProposer(proposer, round))
}

func TestRemoveLeaderTriggersReElection(t *testing.T) {
	vs := rotatingSet()
	vs.AddValidator(types.NewValidatorNode("v1", "a", 9000))
	vs.AddValidator(types.NewValidatorNode("v2", "a", 9000))
	leader := vs.CurrentLeader()
	require.Equal(t, "v1", leader)

	vs.RemoveValidator("v1")
	require.Equal(t, "v2", vs.CurrentLeader())
	require.False(t, vs.Contains("v1"))
}

func TestVotingPower(t *testing.T) {
	vs := rotatingSet()
	vs.AddValidator(types.NodeInfo{ID: "v1", Stake: 100, Active: true})
	vs.AddValidator(types.NodeInfo{ID: "v2", Stake: 50, Active: true})
	require.Equal(t, uint64(100), vs.GetVotingPower("v1"))
	require.Equal(t, uint64(150), vs.TotalVotingPower())
	require.Equal(t, uint64(0), vs.GetVotingPower("unknown"))
}

func TestAdvanceRound(t *testing.T) {
	vs := rotatingSet()
	vs.AddValidator(types.NewValidatorNode("v1", "a", 9000))
	require.Equal(t, uint64(0), vs.CurrentRound())
	vs.AdvanceRound("v1", true)
	require.Equal(t, uint64(1), vs.CurrentRound())
}

func TestReputationStrategyElectsRegisteredCandidate(t *testing.T) {
	vs := New(ElectionStrategy{Kind: StrategyReputation})
	vs.AddValidator(types.NodeInfo{ID: "v1", Stake: 10, Active: true})
	vs.AddValidator(types.NodeInfo{ID: "v2", Stake: 10, Active: true})

	proposer := vs.GetValidProposer(3)
	require.Contains(t, []string{"v1", "v2"}, proposer)
}
