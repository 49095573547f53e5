// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensuscore implements the Folder/Anchor Builder and the
// Consensus Manager that runs the ConsensusFrame propose/vote/finalize
// protocol described in spec.md §4.7-4.8.
package consensuscore

import (
	"fmt"

	"github.com/luxfi/anchor/dag"
	"github.com/luxfi/anchor/merkle"
	"github.com/luxfi/anchor/state"
	"github.com/luxfi/anchor/types"
	"github.com/luxfi/anchor/vlc"
	"github.com/luxfi/ids"
)

// FolderConfig tunes when and how much a Folder folds.
type FolderConfig struct {
	VLCDeltaThreshold uint64
	MinEventsPerCF    int
	MaxEventsPerCF    int
}

// Folder converts a contiguous range of DAG events into a signed, Merkle
// committed Anchor. It tracks its own fold cursor independent of the
// ConsensusManager that wraps its output in a CF.
type Folder struct {
	config         FolderConfig
	lastAnchor     *types.Anchor
	anchorDepth    uint64
	lastFoldVLC    uint64
	anchorChainRoot merkle.Hash // folded hash chain over every anchor preimage
}

// NewFolder returns a Folder starting at depth 0 with an empty anchor chain.
func NewFolder(cfg FolderConfig) *Folder {
	return &Folder{config: cfg, anchorChainRoot: merkle.EmptyHash()}
}

// ShouldFold reports whether the VLC has advanced by at least the
// configured delta threshold since the last fold.
func (f *Folder) ShouldFold(currentLogicalTime uint64) bool {
	return currentLogicalTime-f.lastFoldVLC >= f.config.VLCDeltaThreshold
}

// LastAnchor returns the most recently built anchor, if any.
func (f *Folder) LastAnchor() *types.Anchor {
	return f.lastAnchor
}

// Fold collects events in [anchorDepth, dag.MaxDepth()], applies their state
// changes to mgr, and builds an Anchor over the result. Returns
// ErrCFBelowMinimum if fewer than MinEventsPerCF events are available.
func (f *Folder) Fold(d *dag.Dag, snap vlc.Snapshot, mgr *state.Manager, now uint64) (*types.Anchor, error) {
	toDepth := d.MaxDepth()
	events := d.GetEventsInRange(f.anchorDepth, toDepth)
	if f.config.MaxEventsPerCF > 0 && len(events) > f.config.MaxEventsPerCF {
		events = events[:f.config.MaxEventsPerCF]
		toDepth = events[len(events)-1].Depth()
	}
	if len(events) < f.config.MinEventsPerCF {
		return nil, types.ErrCFBelowMinimum
	}

	eventIDs := make([]types.EventID, len(events))
	leafData := make([][]byte, len(events))
	for i, e := range events {
		eventIDs[i] = e.ID
		leafData[i] = e.ID[:]
	}
	eventsRoot := merkle.BuildBinary(leafData).Root()

	touchedSubnets := ReplayStateChanges(mgr, events)

	var previous ids.ID
	if f.lastAnchor != nil {
		previous = f.lastAnchor.ID
	}

	depth := toDepth
	mgr.Commit(types.AnchorID{}) // anchor id not known until after the post-commit global root is hashed

	roots := types.MerkleRoots{
		EventsRoot:      eventsRoot,
		GlobalStateRoot: mgr.GetGlobalRoot(),
		PerSubnetRoots:  make(map[types.SubnetID]merkle.Hash, len(touchedSubnets)),
	}
	for subnet := range touchedSubnets {
		roots.PerSubnetRoots[subnet] = mgr.GetSubnetRoot(subnet)
	}

	anchor := types.NewAnchor(depth, eventIDs, snap, roots, previous, now)
	f.anchorChainRoot = merkle.HashInternal(f.anchorChainRoot, types.HashFromID(anchor.ID))
	anchor.Roots.AnchorChainRoot = f.anchorChainRoot

	for subnet := range touchedSubnets {
		mgr.SetLastAnchor(subnet, anchor.ID)
	}

	f.anchorDepth = toDepth + 1
	f.lastFoldVLC = snap.LogicalTime
	f.lastAnchor = anchor
	return anchor, nil
}

// ReplayStateChanges stages every event's ExecutionResult.StateChanges
// against mgr via ApplyStateChange/RecordModification, returning the set of
// subnets touched. Shared by the leader's Fold and the follower's CF
// verification path so both compute state roots the same way.
func ReplayStateChanges(mgr *state.Manager, events []*types.Event) map[types.SubnetID]struct{} {
	touched := map[types.SubnetID]struct{}{}
	for _, e := range events {
		if e.ExecutionResult == nil {
			continue
		}
		for _, change := range e.ExecutionResult.StateChanges {
			objID := types.IDFromHash(merkle.Sum256([]byte(change.Key)))
			mgr.ApplyStateChange(e.SubnetID, state.Change{ObjectID: objID, NewValue: change.NewValue})
			mgr.RecordModification(e.ID, objID)
			touched[e.SubnetID] = struct{}{}
		}
	}
	return touched
}

// VerifyAndApplyCF independently recomputes cf's events root and post-state
// roots from events (the full set cf.Anchor references, already present
// locally) and compares them against cf.Anchor before touching mgr at all.
// Only once every root checks out are the state changes applied to mgr and
// committed under cf.Anchor.ID. This is the follower's half of what Fold
// does for the leader (spec.md §4.9 steps 4-5: verify Merkle roots, apply
// state changes and compare post-state root).
func VerifyAndApplyCF(cf *types.ConsensusFrame, events []*types.Event, mgr *state.Manager) error {
	leafData := make([][]byte, len(events))
	for i, e := range events {
		leafData[i] = e.ID[:]
	}
	eventsRoot := merkle.BuildBinary(leafData).Root()
	if eventsRoot != cf.Anchor.Roots.EventsRoot {
		return fmt.Errorf("%w: CF %s events root", types.ErrMerkleRootMismatch, cf.ID)
	}

	shadow := mgr.Clone()
	touched := ReplayStateChanges(shadow, events)
	result := shadow.Commit(cf.Anchor.ID)
	if result.GlobalRoot != cf.Anchor.Roots.GlobalStateRoot {
		return fmt.Errorf("%w: CF %s global state root", types.ErrStateRootMismatch, cf.ID)
	}
	for subnet := range touched {
		want, ok := cf.Anchor.Roots.PerSubnetRoots[subnet]
		if !ok || result.PerSubnetRoots[subnet] != want {
			return fmt.Errorf("%w: CF %s subnet %s state root", types.ErrStateRootMismatch, cf.ID, subnet)
		}
	}

	ReplayStateChanges(mgr, events)
	mgr.Commit(cf.Anchor.ID)
	for subnet := range touched {
		mgr.SetLastAnchor(subnet, cf.Anchor.ID)
	}
	return nil
}
