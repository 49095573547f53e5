// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package election implements proposer selection for consensus rounds:
// round-robin rotation and reputation-weighted variants, both conforming to
// a common ProposerElection interface.
package election

// ProposerElection selects, for a given round, which validator is allowed
// to propose a ConsensusFrame.
type ProposerElection interface {
	// GetValidProposer returns the validator id allowed to propose at round.
	GetValidProposer(round uint64) string

	// IsValidProposer reports whether candidate is the valid proposer for
	// round.
	IsValidProposer(candidate string, round uint64) bool

	// GetCandidates returns every validator id eligible to ever propose,
	// in the order the strategy tracks them.
	GetCandidates() []string

	// ContiguousRounds returns how many consecutive rounds a single
	// proposer holds before rotation advances (1 if not applicable).
	ContiguousRounds() uint64

	// OnRoundCompleted notifies the strategy that round completed, with
	// the proposer that served it and whether the round succeeded. Used
	// by reputation-weighted strategies to update their metadata backend;
	// a no-op for rotating election.
	OnRoundCompleted(round uint64, proposer string, success bool)
}
