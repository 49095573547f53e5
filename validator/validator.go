// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validator tracks the registered validator set, the current round,
// and delegates proposer selection to an election.ProposerElection strategy
// rebuilt on every membership change.
package validator

import (
	"sort"
	"sync"

	"github.com/luxfi/anchor/election"
	"github.com/luxfi/anchor/types"
)

// StrategyKind selects which election.ProposerElection implementation a
// ValidatorSet rebuilds on membership changes.
type StrategyKind int

const (
	StrategyRotating StrategyKind = iota
	StrategyReputation
	StrategyFixed
)

// ElectionStrategy configures how a ValidatorSet elects proposers.
type ElectionStrategy struct {
	Kind             StrategyKind
	ContiguousRounds uint64            // Rotating
	ReputationConfig election.ReputationConfig // Reputation
	FixedProposer    string            // Fixed
}

// ValidatorSet is the registered validator membership plus round state. The
// first validator ever registered becomes the initial leader. Any mutation
// rebuilds the election strategy; removing the current leader triggers
// immediate re-election.
type ValidatorSet struct {
	mu         sync.RWMutex
	validators map[string]*types.ValidatorInfo
	order      []string // insertion order, for "first validator" semantics
	strategy   ElectionStrategy
	election   election.ProposerElection
	metadata   *election.InMemoryMetadataBackend
	round      uint64
	leaderID   string
}

// New constructs an empty validator set using strategy.
func New(strategy ElectionStrategy) *ValidatorSet {
	vs := &ValidatorSet{
		validators: make(map[string]*types.ValidatorInfo),
		strategy:   strategy,
		metadata:   election.NewInMemoryMetadataBackend(64),
	}
	vs.rebuildElection()
	return vs
}

// AddValidator registers node. The first validator registered becomes the
// initial leader.
func (vs *ValidatorSet) AddValidator(node types.NodeInfo) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.validators[node.ID]; exists {
		vs.validators[node.ID].Node = node
		return
	}
	vs.validators[node.ID] = &types.ValidatorInfo{Node: node}
	vs.order = append(vs.order, node.ID)
	if vs.leaderID == "" {
		vs.leaderID = node.ID
		vs.validators[node.ID].IsLeader = true
	}
	vs.rebuildElectionLocked()
}

// RemoveValidator drops id. If id was the current leader, re-election runs
// immediately against the round that was in progress.
func (vs *ValidatorSet) RemoveValidator(id string) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, ok := vs.validators[id]; !ok {
		return
	}
	delete(vs.validators, id)
	for i, oid := range vs.order {
		if oid == id {
			vs.order = append(vs.order[:i], vs.order[i+1:]...)
			break
		}
	}
	vs.rebuildElectionLocked()

	if vs.leaderID == id {
		vs.leaderID = vs.election.GetValidProposer(vs.round)
		for vid, info := range vs.validators {
			info.IsLeader = vid == vs.leaderID
		}
	}
}

// rebuildElection recomputes the election strategy from current membership.
func (vs *ValidatorSet) rebuildElection() {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.rebuildElectionLocked()
}

func (vs *ValidatorSet) rebuildElectionLocked() {
	ids := make([]string, len(vs.order))
	copy(ids, vs.order)
	sort.Strings(ids)

	switch vs.strategy.Kind {
	case StrategyReputation:
		powers := make(map[string]uint64, len(vs.validators))
		for id, info := range vs.validators {
			powers[id] = info.Node.Stake
		}
		vs.election = election.NewLeaderReputation(vs.metadata, vs.strategy.ReputationConfig, ids, powers, 0)
	case StrategyFixed:
		vs.election = election.NewRotatingProposer([]string{vs.strategy.FixedProposer}, 1)
	default:
		vs.election = election.NewRotatingProposer(ids, vs.strategy.ContiguousRounds)
	}
}

// QuorumSize returns floor(2n/3)+1 for the current registered count.
func (vs *ValidatorSet) QuorumSize() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return types.Quorum(len(vs.validators))
}

// Count returns the number of registered validators.
func (vs *ValidatorSet) Count() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return len(vs.validators)
}

// CurrentRound returns the round counter.
func (vs *ValidatorSet) CurrentRound() uint64 {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.round
}

// AdvanceRound increments the round counter, records the outcome of the
// round that just completed, and updates the leader for the new round.
func (vs *ValidatorSet) AdvanceRound(completedProposer string, success bool) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	vs.election.OnRoundCompleted(vs.round, completedProposer, success)
	vs.round++
	vs.leaderID = vs.election.GetValidProposer(vs.round)
	for vid, info := range vs.validators {
		info.IsLeader = vid == vs.leaderID
		if info.IsLeader {
			info.LeaderRound = vs.round
		}
	}
}

// GetValidProposer returns the validator id elected for round.
func (vs *ValidatorSet) GetValidProposer(round uint64) string {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.election.GetValidProposer(round)
}

// IsValidProposer reports whether candidate is valid for round.
func (vs *ValidatorSet) IsValidProposer(candidate string, round uint64) bool {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.election.IsValidProposer(candidate, round)
}

// CurrentLeader returns the leader elected for the current round.
func (vs *ValidatorSet) CurrentLeader() string {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return vs.leaderID
}

// IsLeader reports whether id is the current round's leader.
func (vs *ValidatorSet) IsLeader(id string) bool {
	return vs.CurrentLeader() == id
}

// GetVotingPower returns id's registered stake, or 0 if unregistered.
func (vs *ValidatorSet) GetVotingPower(id string) uint64 {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	info, ok := vs.validators[id]
	if !ok {
		return 0
	}
	return info.Node.Stake
}

// TotalVotingPower sums the stake of every registered validator.
func (vs *ValidatorSet) TotalVotingPower() uint64 {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	var total uint64
	for _, info := range vs.validators {
		total += info.Node.Stake
	}
	return total
}

// Get returns the registered info for id.
func (vs *ValidatorSet) Get(id string) (types.ValidatorInfo, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	info, ok := vs.validators[id]
	if !ok {
		return types.ValidatorInfo{}, false
	}
	return *info, true
}

// Contains reports whether id is registered.
func (vs *ValidatorSet) Contains(id string) bool {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	_, ok := vs.validators[id]
	return ok
}
