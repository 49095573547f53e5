// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"github.com/luxfi/anchor/merkle"
	"github.com/luxfi/ids"
)

// CFStatus tracks a ConsensusFrame's lifecycle.
type CFStatus int

const (
	CFPending CFStatus = iota
	CFFinalized
)

// Vote is one validator's approval/rejection of a ConsensusFrame.
type Vote struct {
	ValidatorID string
	CFID        CFID
	Approve     bool
}

// ConsensusFrame is a proposed Anchor plus its accumulated votes.
type ConsensusFrame struct {
	ID        CFID
	Proposer  string
	Anchor    *Anchor
	Votes     map[string]Vote // keyed by validator id; no double voting
	Status    CFStatus
}

// NewConsensusFrame wraps anchor in a new, pending CF authored by proposer.
// The CF id is content-addressed from the anchor id and proposer so that
// identical proposals from honest nodes collide deterministically.
func NewConsensusFrame(anchor *Anchor, proposer string) *ConsensusFrame {
	cf := &ConsensusFrame{
		Proposer: proposer,
		Anchor:   anchor,
		Votes:    make(map[string]Vote),
		Status:   CFPending,
	}
	var buf []byte
	aid := anchor.ID
	buf = append(buf, aid[:]...)
	buf = append(buf, []byte(proposer)...)
	cf.ID = ids.ID(merkle.Sum256(buf))
	return cf
}

// AddVote records v if the validator has not already voted for this CF.
// Returns false on a duplicate vote (no-op per spec.md §4.8).
func (cf *ConsensusFrame) AddVote(v Vote) bool {
	if _, ok := cf.Votes[v.ValidatorID]; ok {
		return false
	}
	cf.Votes[v.ValidatorID] = v
	return true
}

// ApproveCount returns the number of approve=true votes.
func (cf *ConsensusFrame) ApproveCount() int {
	n := 0
	for _, v := range cf.Votes {
		if v.Approve {
			n++
		}
	}
	return n
}

// CheckQuorum reports whether approve votes reach floor(2n/3)+1 for n
// registered validators.
func (cf *ConsensusFrame) CheckQuorum(validatorCount int) bool {
	return cf.ApproveCount() >= Quorum(validatorCount)
}

// Quorum computes floor(2n/3)+1, the bit-exact rule from spec.md §6.
func Quorum(n int) int {
	return (2*n)/3 + 1
}

// Finalize transitions the CF to Finalized.
func (cf *ConsensusFrame) Finalize() {
	cf.Status = CFFinalized
}
