// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package election

import (
	"encoding/binary"
	"sync"
)

// ReputationConfig tunes the activity/failure heuristic. Defaults match the
// original implementation.
type ReputationConfig struct {
	VoterWindowSize         int
	ProposerWindowSize      int
	ActiveWeight            uint64
	InactiveWeight          uint64
	FailedWeight            uint64
	FailureThresholdPercent uint64
}

// DefaultReputationConfig returns the tuned defaults.
func DefaultReputationConfig() ReputationConfig {
	return ReputationConfig{
		VoterWindowSize:         10,
		ProposerWindowSize:      10,
		ActiveWeight:            100,
		InactiveWeight:          10,
		FailedWeight:            1,
		FailureThresholdPercent: 20,
	}
}

// ConsensusFrameMetadata records one round's outcome for reputation scoring.
type ConsensusFrameMetadata struct {
	Epoch        uint64
	Round        uint64
	Proposer     string
	Voters       []string
	Success      bool
	FailedVoters []string
	Timestamp    uint64
}

// MetadataBackend supplies recent round history for an epoch, most-recent
// first, plus the round number of the most recent entry.
type MetadataBackend interface {
	GetBlockMetadata(epoch, round uint64) (history []ConsensusFrameMetadata, latestRound uint64)
}

// InMemoryMetadataBackend is a ring-buffer-backed MetadataBackend: newest
// entries are pushed to the front, oldest popped once capacity is exceeded.
type InMemoryMetadataBackend struct {
	mu       sync.Mutex
	capacity int
	history  []ConsensusFrameMetadata
}

// NewInMemoryMetadataBackend returns a backend retaining at most capacity
// entries.
func NewInMemoryMetadataBackend(capacity int) *InMemoryMetadataBackend {
	return &InMemoryMetadataBackend{capacity: capacity}
}

// Record inserts m at the front, evicting the oldest entry if over capacity.
func (b *InMemoryMetadataBackend) Record(m ConsensusFrameMetadata) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append([]ConsensusFrameMetadata{m}, b.history...)
	if len(b.history) > b.capacity {
		b.history = b.history[:b.capacity]
	}
}

// GetBlockMetadata returns the full retained history (the in-memory backend
// does not segment by epoch/round itself; filtering happens in the
// aggregation layer) and the round of its most recent entry.
func (b *InMemoryMetadataBackend) GetBlockMetadata(uint64, uint64) ([]ConsensusFrameMetadata, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ConsensusFrameMetadata, len(b.history))
	copy(out, b.history)
	var latest uint64
	if len(out) > 0 {
		latest = out[0].Round
	}
	return out, latest
}

// ConsensusFrameAggregation counts votes, proposals and failed proposals
// for a candidate within a window of epoch-scoped history.
type ConsensusFrameAggregation struct {
	EpochCandidates map[string]struct{}
	Config          ReputationConfig
}

func windowed(history []ConsensusFrameMetadata, size int) []ConsensusFrameMetadata {
	if size >= 0 && len(history) > size {
		return history[:size]
	}
	return history
}

func (a ConsensusFrameAggregation) inEpoch(id string) bool {
	if a.EpochCandidates == nil {
		return true
	}
	_, ok := a.EpochCandidates[id]
	return ok
}

// CountVotes returns how many times candidate appears in voters within the
// voter window.
func (a ConsensusFrameAggregation) CountVotes(history []ConsensusFrameMetadata, candidate string) int {
	if !a.inEpoch(candidate) {
		return 0
	}
	n := 0
	for _, m := range windowed(history, a.Config.VoterWindowSize) {
		for _, v := range m.Voters {
			if v == candidate {
				n++
				break
			}
		}
	}
	return n
}

// CountProposals returns how many times candidate proposed within the
// proposer window.
func (a ConsensusFrameAggregation) CountProposals(history []ConsensusFrameMetadata, candidate string) int {
	if !a.inEpoch(candidate) {
		return 0
	}
	n := 0
	for _, m := range windowed(history, a.Config.ProposerWindowSize) {
		if m.Proposer == candidate {
			n++
		}
	}
	return n
}

// CountFailedProposals returns how many of candidate's proposals, within the
// proposer window, failed.
func (a ConsensusFrameAggregation) CountFailedProposals(history []ConsensusFrameMetadata, candidate string) int {
	if !a.inEpoch(candidate) {
		return 0
	}
	n := 0
	for _, m := range windowed(history, a.Config.ProposerWindowSize) {
		if m.Proposer == candidate && !m.Success {
			n++
		}
	}
	return n
}

// GetWeight applies the failure-rate-then-activity heuristic: if the
// candidate's failure rate within the window exceeds the threshold it gets
// FailedWeight; else if it had any proposals or votes it gets ActiveWeight;
// otherwise InactiveWeight.
func (a ConsensusFrameAggregation) GetWeight(history []ConsensusFrameMetadata, candidate string) uint64 {
	proposals := a.CountProposals(history, candidate)
	failed := a.CountFailedProposals(history, candidate)
	votes := a.CountVotes(history, candidate)

	if proposals > 0 {
		failureRate := uint64(failed) * 100 / uint64(proposals)
		if failureRate > a.Config.FailureThresholdPercent {
			return a.Config.FailedWeight
		}
	}
	if proposals > 0 || votes > 0 {
		return a.Config.ActiveWeight
	}
	return a.Config.InactiveWeight
}

// LeaderReputation selects a proposer by combining reputation weight with
// stake, using ChooseIndex seeded by the round number.
type LeaderReputation struct {
	mu             sync.RWMutex
	backend        MetadataBackend
	aggregation    ConsensusFrameAggregation
	votingPowers   map[string]uint64
	epoch          uint64
	candidateOrder []string
}

// NewLeaderReputation builds a reputation-weighted election over candidates
// with the given per-candidate voting power (stake).
func NewLeaderReputation(backend MetadataBackend, cfg ReputationConfig, candidates []string, votingPowers map[string]uint64, epoch uint64) *LeaderReputation {
	set := make(map[string]struct{}, len(candidates))
	order := make([]string, len(candidates))
	copy(order, candidates)
	for _, c := range candidates {
		set[c] = struct{}{}
	}
	vp := make(map[string]uint64, len(votingPowers))
	for k, v := range votingPowers {
		vp[k] = v
	}
	return &LeaderReputation{
		backend:        backend,
		aggregation:    ConsensusFrameAggregation{EpochCandidates: set, Config: cfg},
		votingPowers:   vp,
		epoch:          epoch,
		candidateOrder: order,
	}
}

// GetReputationWeights returns, in candidate order, each candidate's
// reputation weight times its voting power.
func (l *LeaderReputation) GetReputationWeights(round uint64) []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	history, _ := l.backend.GetBlockMetadata(l.epoch, round)
	weights := make([]uint64, len(l.candidateOrder))
	for i, c := range l.candidateOrder {
		weights[i] = l.aggregation.GetWeight(history, c) * l.votingPowers[c]
	}
	return weights
}

// GetValidProposer selects a proposer for round proportional to reputation
// weight, seeded deterministically by round.
func (l *LeaderReputation) GetValidProposer(round uint64) string {
	l.mu.RLock()
	candidates := l.candidateOrder
	l.mu.RUnlock()
	if len(candidates) == 0 {
		return ""
	}
	weights := l.GetReputationWeights(round)
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], round)
	idx := ChooseIndex(weights, seed[:])
	return candidates[idx]
}

// IsValidProposer reports whether candidate is the elected proposer for
// round.
func (l *LeaderReputation) IsValidProposer(candidate string, round uint64) bool {
	return l.GetValidProposer(round) == candidate
}

// GetCandidates returns the tracked candidate set in registration order.
func (l *LeaderReputation) GetCandidates() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.candidateOrder))
	copy(out, l.candidateOrder)
	return out
}

// ContiguousRounds is always 1 for reputation election: every round is
// re-elected independently.
func (l *LeaderReputation) ContiguousRounds() uint64 { return 1 }

// OnRoundCompleted records the round's outcome into the metadata backend if
// it supports recording.
func (l *LeaderReputation) OnRoundCompleted(round uint64, proposer string, success bool) {
	if recorder, ok := l.backend.(*InMemoryMetadataBackend); ok {
		recorder.Record(ConsensusFrameMetadata{
			Epoch:    l.epoch,
			Round:    round,
			Proposer: proposer,
			Success:  success,
		})
	}
}

var _ ProposerElection = (*LeaderReputation)(nil)
