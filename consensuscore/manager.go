// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensuscore

import (
	"sync"

	"github.com/luxfi/anchor/dag"
	"github.com/luxfi/anchor/state"
	"github.com/luxfi/anchor/types"
	"github.com/luxfi/anchor/vlc"
)

// Manager runs the propose -> vote -> finalize protocol over CFs produced
// by a Folder. It tracks pending and finalized frames and is the single
// place quorum transitions are detected, so finalization fires exactly
// once per CF.
type Manager struct {
	mu             sync.Mutex
	folder         *Folder
	localValidator string
	validatorCount func() int

	pending   map[types.CFID]*types.ConsensusFrame
	finalized map[types.CFID]*types.ConsensusFrame
	lastFinalizedID types.CFID
}

// NewManager returns a Manager wrapping folder, authoring CFs as
// localValidator. validatorCount is called at quorum-check time so a
// Manager always checks against the live validator set size.
func NewManager(folder *Folder, localValidator string, validatorCount func() int) *Manager {
	return &Manager{
		folder:         folder,
		localValidator: localValidator,
		validatorCount: validatorCount,
		pending:        make(map[types.CFID]*types.ConsensusFrame),
		finalized:      make(map[types.CFID]*types.ConsensusFrame),
	}
}

// ShouldFold passes through to the wrapped Folder.
func (m *Manager) ShouldFold(currentLogicalTime uint64) bool {
	return m.folder.ShouldFold(currentLogicalTime)
}

// TryCreateCF folds the DAG into an Anchor, wraps it in a new CF authored by
// the local validator, and stores it pending. Returns nil, err if the fold
// declined (e.g. below the minimum event count).
func (m *Manager) TryCreateCF(d *dag.Dag, snap vlc.Snapshot, stateMgr *state.Manager, now uint64) (*types.ConsensusFrame, error) {
	anchor, err := m.folder.Fold(d, snap, stateMgr, now)
	if err != nil {
		return nil, err
	}
	cf := types.NewConsensusFrame(anchor, m.localValidator)

	m.mu.Lock()
	m.pending[cf.ID] = cf
	m.mu.Unlock()
	return cf, nil
}

// ReceiveCF idempotently inserts cf into the pending set; a CF already
// known (pending or finalized) is a no-op.
func (m *Manager) ReceiveCF(cf *types.ConsensusFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[cf.ID]; ok {
		return
	}
	if _, ok := m.finalized[cf.ID]; ok {
		return
	}
	m.pending[cf.ID] = cf
}

// GetPendingCF returns the pending CF with id, if any.
func (m *Manager) GetPendingCF(id types.CFID) (*types.ConsensusFrame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cf, ok := m.pending[id]
	return cf, ok
}

// VoteForCF records the local validator's vote on id. Returns
// ErrAlreadyVoted if this validator already voted for id, ErrUnknownCF if id
// is not pending.
func (m *Manager) VoteForCF(id types.CFID, approve bool) (types.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cf, ok := m.pending[id]
	if !ok {
		return types.Vote{}, types.ErrUnknownCF
	}
	v := types.Vote{ValidatorID: m.localValidator, CFID: id, Approve: approve}
	if !cf.AddVote(v) {
		return types.Vote{}, types.ErrAlreadyVoted
	}
	return v, nil
}

// ReceiveVote attaches v to its CF and reports whether this vote caused the
// CF to cross quorum. The quorum check happens under the manager's lock, so
// exactly one caller observes the crossing for a given CF.
func (m *Manager) ReceiveVote(v types.Vote) (finalized bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cf, ok := m.pending[v.CFID]
	if !ok {
		if _, done := m.finalized[v.CFID]; done {
			return false, nil // late vote on an already finalized CF: no-op
		}
		return false, types.ErrUnknownCF
	}
	if !cf.AddVote(v) {
		return false, nil // duplicate vote: no-op, not an error
	}
	return m.checkFinalizationLocked(cf), nil
}

// CheckFinalization re-evaluates id's quorum state without requiring a new
// vote, used after the local validator's own vote is cast.
func (m *Manager) CheckFinalization(id types.CFID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cf, ok := m.pending[id]
	if !ok {
		return false
	}
	return m.checkFinalizationLocked(cf)
}

func (m *Manager) checkFinalizationLocked(cf *types.ConsensusFrame) bool {
	if cf.Status == types.CFFinalized {
		return false // already finalized by an earlier vote; not a new transition
	}
	if !cf.CheckQuorum(m.validatorCount()) {
		return false
	}
	cf.Finalize()
	delete(m.pending, cf.ID)
	m.finalized[cf.ID] = cf
	m.lastFinalizedID = cf.ID
	return true
}

// FinalizedCF returns id's finalized CF. Returns types.ErrNoQuorum if id is
// known but still pending (has not reached quorum), or types.ErrUnknownCF
// if id is not known at all; used by read paths (e.g. an explorer querying
// a CF by id) that must distinguish "not yet finalized" from "no such CF".
func (m *Manager) FinalizedCF(id types.CFID) (*types.ConsensusFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cf, ok := m.finalized[id]; ok {
		return cf, nil
	}
	if _, ok := m.pending[id]; ok {
		return nil, types.ErrNoQuorum
	}
	return nil, types.ErrUnknownCF
}

// LastFinalizedCF returns the most recently finalized CF, if any.
func (m *Manager) LastFinalizedCF() (*types.ConsensusFrame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cf, ok := m.finalized[m.lastFinalizedID]
	return cf, ok
}

// FinalizedCount returns how many CFs this manager has finalized.
func (m *Manager) FinalizedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.finalized)
}

// MarkAnchorPersisted drops cfID's finalized copy once its anchor has been
// durably persisted, permitting GC of in-memory CF state.
func (m *Manager) MarkAnchorPersisted(cfID types.CFID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.finalized, cfID)
}
