// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package election

import (
	"sort"
	"sync"
)

// RotatingProposer cycles through a sorted validator list, holding each
// proposer for ContiguousRounds consecutive rounds before advancing.
type RotatingProposer struct {
	mu               sync.RWMutex
	proposers        []string
	contiguousRounds uint64
}

// NewRotatingProposer builds a rotating election over proposers (sorted
// deterministically by id) holding each leader for contiguousRounds rounds.
// contiguousRounds of 0 is treated as 1.
func NewRotatingProposer(proposers []string, contiguousRounds uint64) *RotatingProposer {
	if contiguousRounds == 0 {
		contiguousRounds = 1
	}
	r := &RotatingProposer{contiguousRounds: contiguousRounds}
	r.proposers = append(r.proposers, proposers...)
	r.sortProposers()
	return r
}

func (r *RotatingProposer) sortProposers() {
	sort.Strings(r.proposers)
}

// AddProposer inserts id (if not already present) and re-sorts.
func (r *RotatingProposer) AddProposer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.proposers {
		if p == id {
			return
		}
	}
	r.proposers = append(r.proposers, id)
	r.sortProposers()
}

// RemoveProposer removes id if present and re-sorts.
func (r *RotatingProposer) RemoveProposer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.proposers {
		if p == id {
			r.proposers = append(r.proposers[:i], r.proposers[i+1:]...)
			r.sortProposers()
			return
		}
	}
}

// GetProposerIndex computes (round / contiguousRounds) mod len(proposers).
func (r *RotatingProposer) GetProposerIndex(round uint64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.proposers) == 0 {
		return -1
	}
	return int((round / r.contiguousRounds) % uint64(len(r.proposers)))
}

// GetValidProposer returns the proposer id for round, or "" if there are no
// registered proposers.
func (r *RotatingProposer) GetValidProposer(round uint64) string {
	idx := r.GetProposerIndex(round)
	if idx < 0 {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.proposers[idx]
}

// IsValidProposer reports whether candidate is the proposer for round.
func (r *RotatingProposer) IsValidProposer(candidate string, round uint64) bool {
	return r.GetValidProposer(round) == candidate
}

// GetCandidates returns the current proposer set in sorted order.
func (r *RotatingProposer) GetCandidates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.proposers))
	copy(out, r.proposers)
	return out
}

// ContiguousRounds returns the configured hold length.
func (r *RotatingProposer) ContiguousRounds() uint64 {
	return r.contiguousRounds
}

// OnRoundCompleted is a no-op: rotation does not depend on round outcomes.
func (r *RotatingProposer) OnRoundCompleted(uint64, string, bool) {}

// ChooseLeader returns the lexicographically smallest proposer id, the
// deterministic tie-break used to pick an initial leader before any round
// has been played.
func (r *RotatingProposer) ChooseLeader() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.proposers) == 0 {
		return ""
	}
	return r.proposers[0]
}

var _ ProposerElection = (*RotatingProposer)(nil)
