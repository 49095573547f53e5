// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package engine is the top-level orchestrator: it wires the DAG, VLC
// clock, validator set, and ConsensusManager together, implementing the
// main event/CF/vote flow described in spec.md §4 (OVERVIEW):
//
//  1. Events enter the DAG from solvers, with TEE execution proofs.
//  2. Each validator maintains a VLC clock, merged on every event received.
//  3. The leader is selected per round by the configured election strategy.
//  4. When the leader's VLC delta reaches threshold, it folds the DAG.
//  5. Other validators verify and vote on the fold.
//  6. After quorum votes, the ConsensusFrame is finalized.
//  7. The next round begins with the finalized frame as anchor.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/anchor/attestation"
	"github.com/luxfi/anchor/broadcast"
	"github.com/luxfi/anchor/config"
	"github.com/luxfi/anchor/consensuscore"
	"github.com/luxfi/anchor/dag"
	"github.com/luxfi/anchor/merkle"
	"github.com/luxfi/anchor/state"
	"github.com/luxfi/anchor/types"
	"github.com/luxfi/anchor/validator"
	"github.com/luxfi/anchor/vlc"
	"github.com/luxfi/log"
)

// DagStats summarizes the DAG for diagnostics, mirroring spec.md §6's
// status-reporting surface.
type DagStats struct {
	NodeCount    int
	MaxDepth     uint64
	TipCount     int
	GenesisCount int
}

// Engine is the main consensus engine for one validator node. Every
// exported method is safe for concurrent use; internal locking always
// follows the fixed order validatorSet -> vlc -> dag -> consensusManager
// -> broadcaster to avoid deadlock between methods taking more than one
// lock at a time.
type Engine struct {
	dag            *dag.Dag
	vlc            *vlc.Clock
	validatorSet   *validator.ValidatorSet
	consensusMgr   *consensuscore.Manager
	stateMgr       *state.Manager
	localValidator string
	log            log.Logger

	mu                  sync.RWMutex
	broadcaster         broadcast.Broadcaster
	attestationVerifier attestation.Verifier
}

// New builds an Engine for localValidator, using validatorSet for election
// and cfg's VLCDeltaThreshold/MinEventsPerCF/MaxEventsPerCF to tune when and
// how much the local validator folds.
func New(cfg config.Config, validatorSet *validator.ValidatorSet) *Engine {
	localValidator := cfg.NodeID
	stateMgr := state.New()
	folder := consensuscore.NewFolder(consensuscore.FolderConfig{
		VLCDeltaThreshold: cfg.VLCDeltaThreshold,
		MinEventsPerCF:    cfg.MinEventsPerCF,
		MaxEventsPerCF:    cfg.MaxEventsPerCF,
	})
	mgr := consensuscore.NewManager(folder, localValidator, validatorSet.Count)

	return &Engine{
		dag:            dag.New(),
		vlc:            vlc.New(localValidator),
		validatorSet:   validatorSet,
		consensusMgr:   mgr,
		stateMgr:       stateMgr,
		localValidator: localValidator,
		log:            log.NewLogger("engine"),
		broadcaster:    broadcast.Noop{},
		attestationVerifier: attestation.NewAllowlistVerifier(
			cfg.AttestationMeasurements, cfg.AttestationAllowMock),
	}
}

// SetBroadcaster wires the network capability used to propagate events,
// CFs, votes, and finalization notices, and to fetch events missing from
// the local DAG when receiving a CF. Call after the network layer is
// initialized; without it the engine runs in single-node/internal mode.
func (e *Engine) SetBroadcaster(b broadcast.Broadcaster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcaster = b
}

func (e *Engine) getBroadcaster() broadcast.Broadcaster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.broadcaster
}

// SetAttestationVerifier overrides the engine's TEE attestation verifier,
// e.g. to swap in a platform-specific implementation once one exists for
// IntelSgx/AmdSev.
func (e *Engine) SetAttestationVerifier(v attestation.Verifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attestationVerifier = v
}

func (e *Engine) getAttestationVerifier() attestation.Verifier {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.attestationVerifier
}

// SubmitAttestedResult verifies att against the expected user_data binding
// for (ev.SubnetID, preStateRoot, postStateRoot, stateDiffCommitment) per
// spec.md §4.11, attaches ev's execution result only once verification
// succeeds, and hands the event to AddEvent.
func (e *Engine) SubmitAttestedResult(ctx context.Context, ev *types.Event, result types.ExecutionResult, att attestation.Attestation, preStateRoot, postStateRoot, stateDiffCommitment [32]byte) (types.EventID, error) {
	expected := attestation.ExpectedUserData(ev.SubnetID, preStateRoot, postStateRoot, stateDiffCommitment)
	if _, err := e.getAttestationVerifier().Verify(att, expected); err != nil {
		return types.EventID{}, err
	}
	ev.ExecutionResult = &result
	ev.Status = types.EventExecuted
	return e.AddEvent(ctx, ev)
}

// maxEventFutureSkew bounds how far into the future an event's timestamp
// may sit relative to the local wall clock before it is rejected
// (spec.md §4.9's add_event quick-check).
const maxEventFutureSkew = 60 * time.Second

// eventRequiresExecutionResult reports whether payload kind names a
// solver-executed payload, which must carry a TEE execution result before
// it may enter the DAG. Locally-authored control events (Genesis, validator
// and subnet registration, System) carry no execution result by design.
func eventRequiresExecutionResult(kind types.PayloadKind) bool {
	switch kind {
	case types.PayloadTransfer, types.PayloadTaskSubmit:
		return true
	default:
		return false
	}
}

// validateEvent runs spec.md §4.9's add_event quick-check: a solver-executed
// event missing its execution result, an event with an empty creator, or an
// event timestamped too far into the future is rejected before it ever
// reaches the VLC or the DAG.
func (e *Engine) validateEvent(ev *types.Event) error {
	if ev.Creator == "" {
		return types.ErrEmptyCreator
	}
	if ev.Payload != nil && eventRequiresExecutionResult(ev.Payload.Kind()) && ev.ExecutionResult == nil {
		return types.ErrMissingExecutionResult
	}
	nowPlusSkew := uint64(time.Now().Add(maxEventFutureSkew).Unix())
	if ev.Timestamp > nowPlusSkew {
		return types.ErrFutureTimestamp
	}
	return nil
}

// AddEvent merges e's VLC snapshot into the local clock, inserts e into the
// DAG, broadcasts it to peers, and attempts to create a CF if the local
// validator is the current round's proposer and fold conditions are met.
func (e *Engine) AddEvent(ctx context.Context, ev *types.Event) (types.EventID, error) {
	if err := e.validateEvent(ev); err != nil {
		return types.EventID{}, err
	}

	e.vlc.Merge(ev.VLC)
	e.vlc.Tick()

	if err := e.dag.AddEvent(ev); err != nil {
		return types.EventID{}, err
	}

	if b := e.getBroadcaster(); b != nil {
		if _, err := b.BroadcastEvent(ctx, ev); err != nil {
			e.log.Warn("failed to broadcast event", "event_id", ev.ID, "error", err)
		}
	}

	if _, err := e.tryCreateCF(ctx); err != nil {
		return types.EventID{}, err
	}
	return ev.ID, nil
}

// ReceiveEventFromNetwork is AddEvent without re-broadcasting, used when an
// event arrives from another validator.
func (e *Engine) ReceiveEventFromNetwork(ctx context.Context, ev *types.Event) (types.EventID, error) {
	if err := e.validateEvent(ev); err != nil {
		return types.EventID{}, err
	}

	e.vlc.Merge(ev.VLC)
	e.vlc.Tick()

	if err := e.dag.AddEvent(ev); err != nil {
		return types.EventID{}, err
	}
	if _, err := e.tryCreateCF(ctx); err != nil {
		return types.EventID{}, err
	}
	return ev.ID, nil
}

// CreateEvent ticks the local VLC and constructs a new event carrying
// payload, authored by the local validator with the given parents.
func (e *Engine) CreateEvent(payload types.EventPayload, parentIDs []types.EventID, now uint64) *types.Event {
	e.vlc.Tick()
	snap := e.vlc.Snapshot()
	return types.NewEvent(payload, parentIDs, snap, e.localValidator, now)
}

// IsCurrentLeader reports whether the local validator is the current
// round's proposer.
func (e *Engine) IsCurrentLeader() bool {
	return e.validatorSet.IsLeader(e.localValidator)
}

// IsValidProposerForRound reports whether the local validator is the valid
// proposer for round.
func (e *Engine) IsValidProposerForRound(round uint64) bool {
	return e.validatorSet.IsValidProposer(e.localValidator, round)
}

// CurrentRound returns the validator set's current round number.
func (e *Engine) CurrentRound() uint64 {
	return e.validatorSet.CurrentRound()
}

// GetValidProposer returns the id of the validator allowed to propose for
// round.
func (e *Engine) GetValidProposer(round uint64) string {
	return e.validatorSet.GetValidProposer(round)
}

// AdvanceRound moves to the next round, recording whether the just-completed
// proposer succeeded.
func (e *Engine) AdvanceRound(completedProposer string, success bool) uint64 {
	e.validatorSet.AdvanceRound(completedProposer, success)
	return e.validatorSet.CurrentRound()
}

// tryCreateCF folds the DAG into a CF if the local validator is the current
// round's proposer and the folder's fold conditions are satisfied, then
// broadcasts the resulting CF.
func (e *Engine) tryCreateCF(ctx context.Context) (*types.ConsensusFrame, error) {
	round := e.validatorSet.CurrentRound()
	if !e.validatorSet.IsValidProposer(e.localValidator, round) {
		return nil, nil
	}

	snap := e.vlc.Snapshot()
	if !e.consensusMgr.ShouldFold(snap.LogicalTime) {
		return nil, nil
	}

	cf, err := e.consensusMgr.TryCreateCF(e.dag, snap, e.stateMgr, snap.PhysicalTime)
	if err != nil {
		if err == types.ErrCFBelowMinimum {
			return nil, nil
		}
		return nil, err
	}

	if b := e.getBroadcaster(); b != nil {
		result, err := b.BroadcastCF(ctx, cf)
		if err != nil {
			e.log.Warn("failed to broadcast CF", "cf_id", cf.ID, "error", err)
		} else {
			e.log.Info("CF broadcasted to peers", "cf_id", cf.ID, "success", result.SuccessCount, "total", result.TotalPeers)
		}
	}
	return cf, nil
}

// ReceiveCF is the follower path for a CF proposed by another validator:
// verify the proposer is valid for the current round, fetch any events the
// CF references that are missing locally, independently recompute its
// Merkle and post-state roots and compare them against the proposer's claim
// (spec.md §4.9 steps 4-5), vote only once they match, and report whether
// the vote caused finalization.
func (e *Engine) ReceiveCF(ctx context.Context, cf *types.ConsensusFrame) (finalized bool, anchor *types.Anchor, err error) {
	round := e.validatorSet.CurrentRound()
	if !e.validatorSet.IsValidProposer(cf.Proposer, round) {
		return false, nil, fmt.Errorf("%w: proposer %s not valid for round %d", types.ErrInvalidProposer, cf.Proposer, round)
	}

	if _, ok := e.consensusMgr.GetPendingCF(cf.ID); ok {
		return false, nil, nil
	}

	if err := e.ensureEventsAvailable(ctx, cf); err != nil {
		return false, nil, err
	}

	events := e.dag.GetEvents(cf.Anchor.EventIDs)
	if len(events) != len(cf.Anchor.EventIDs) {
		return false, nil, fmt.Errorf("%w: CF %s missing events after fetch", types.ErrEventsUnavailable, cf.ID)
	}
	if err := consensuscore.VerifyAndApplyCF(cf, events, e.stateMgr); err != nil {
		return false, nil, err
	}

	e.consensusMgr.ReceiveCF(cf)

	vote, err := e.consensusMgr.VoteForCF(cf.ID, true)
	if err != nil {
		if err == types.ErrAlreadyVoted {
			return false, nil, nil
		}
		return false, nil, err
	}

	if b := e.getBroadcaster(); b != nil {
		if _, err := b.BroadcastVote(ctx, vote); err != nil {
			e.log.Warn("failed to broadcast vote", "cf_id", cf.ID, "error", err)
		}
	}

	if !e.consensusMgr.CheckFinalization(cf.ID) {
		return false, nil, nil
	}
	return e.handleFinalization(ctx)
}

// ensureEventsAvailable fetches, via the broadcaster, any events cf.Anchor
// references that are not yet present in the local DAG.
func (e *Engine) ensureEventsAvailable(ctx context.Context, cf *types.ConsensusFrame) error {
	var missing []types.EventID
	for _, id := range cf.Anchor.EventIDs {
		if !e.dag.Contains(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	b := e.getBroadcaster()
	if b == nil {
		return fmt.Errorf("%w: CF %s references %d events not in local DAG (no broadcaster to fetch)", types.ErrEventsUnavailable, cf.ID, len(missing))
	}

	fetched, err := b.RequestEvents(ctx, missing)
	if err != nil {
		return fmt.Errorf("%w: CF %s fetch failed: %v", types.ErrEventsUnavailable, cf.ID, err)
	}
	for _, ev := range fetched {
		e.vlc.Merge(ev.VLC)
		if err := e.dag.AddEventIdempotent(ev); err != nil {
			e.log.Warn("failed to add fetched event", "event_id", ev.ID, "error", err)
		}
	}

	for _, id := range cf.Anchor.EventIDs {
		if !e.dag.Contains(id) {
			return fmt.Errorf("%w: CF %s still missing events after fetch", types.ErrEventsUnavailable, cf.ID)
		}
	}
	return nil
}

// ReceiveVote attaches v to its CF and reports whether it caused
// finalization.
func (e *Engine) ReceiveVote(ctx context.Context, v types.Vote) (finalized bool, anchor *types.Anchor, err error) {
	finalized, err = e.consensusMgr.ReceiveVote(v)
	if err != nil {
		return false, nil, err
	}
	if !finalized {
		return false, nil, nil
	}
	return e.handleFinalization(ctx)
}

// handleFinalization broadcasts a finalization notice and advances the
// round, returning the finalized anchor for the caller to persist.
func (e *Engine) handleFinalization(ctx context.Context) (bool, *types.Anchor, error) {
	cf, ok := e.consensusMgr.LastFinalizedCF()
	if !ok {
		return true, nil, nil
	}

	if b := e.getBroadcaster(); b != nil {
		if _, err := b.BroadcastFinalized(ctx, cf.ID); err != nil {
			e.log.Warn("failed to broadcast finalization", "cf_id", cf.ID, "error", err)
		}
	}

	e.validatorSet.AdvanceRound(cf.Proposer, true)
	return true, cf.Anchor, nil
}

// GetFinalizedAnchor returns the Anchor finalized for cfID. Returns
// types.ErrNoQuorum if cfID is still pending, or types.ErrUnknownCF if
// cfID is not known at all.
func (e *Engine) GetFinalizedAnchor(cfID types.CFID) (*types.Anchor, error) {
	cf, err := e.consensusMgr.FinalizedCF(cfID)
	if err != nil {
		return nil, err
	}
	return cf.Anchor, nil
}

// MarkAnchorPersisted drops cfID's in-memory finalized copy once its
// anchor has been durably stored, letting the manager GC it.
func (e *Engine) MarkAnchorPersisted(cfID types.CFID) {
	e.consensusMgr.MarkAnchorPersisted(cfID)
}

// GlobalStateRoot returns the current global state root.
func (e *Engine) GlobalStateRoot() merkle.Hash {
	return e.stateMgr.GetGlobalRoot()
}

// SubnetStateRoot returns subnet's current state root.
func (e *Engine) SubnetStateRoot(subnet types.SubnetID) merkle.Hash {
	return e.stateMgr.GetSubnetRoot(subnet)
}

// AnchorCount returns how many CFs this engine has finalized.
func (e *Engine) AnchorCount() int {
	return e.consensusMgr.FinalizedCount()
}

// DagStats returns a snapshot of DAG statistics.
func (e *Engine) DagStats() DagStats {
	s := e.dag.Stats()
	return DagStats{NodeCount: s.NodeCount, MaxDepth: s.MaxDepth, TipCount: s.TipCount, GenesisCount: s.GenesisCount}
}

// VLCSnapshot returns the local validator's current VLC snapshot.
func (e *Engine) VLCSnapshot() vlc.Snapshot {
	return e.vlc.Snapshot()
}

// GetTips returns the current DAG tips.
func (e *Engine) GetTips() []types.EventID {
	return e.dag.GetTips()
}

// GetEventsByIDs resolves eventIDs against the local DAG, returning only
// those present; used to gather events for persistence when a CF finalizes.
func (e *Engine) GetEventsByIDs(eventIDs []types.EventID) []*types.Event {
	return e.dag.GetEvents(eventIDs)
}

// LocalValidatorID returns the local validator's id.
func (e *Engine) LocalValidatorID() string {
	return e.localValidator
}

// StateManager exposes the engine's state manager, for the TaskPreparer
// and other read-only consumers.
func (e *Engine) StateManager() *state.Manager {
	return e.stateMgr
}
