// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store defines the persistence traits the core consumes
// (spec.md §6): events, anchors, consensus frames, and the B4 atomic
// batch-commit surface for SMT leaves, roots, the subnet registry and
// last-anchor pointers. Two implementations are
// provided: store/memstore (in-memory, default) and store/kvstore
// (github.com/luxfi/database-backed).
package store

import (
	"github.com/luxfi/anchor/merkle"
	"github.com/luxfi/anchor/types"
)

// EventStoreBackend persists events and supports the engine's lookups.
type EventStoreBackend interface {
	Put(e *types.Event) error
	Get(id types.EventID) (*types.Event, bool, error)
	GetMany(ids []types.EventID) ([]*types.Event, error)
	Delete(id types.EventID) error
	QueryByStatus(status types.EventStatus) ([]*types.Event, error)
	QueryByCreator(creator string) ([]*types.Event, error)
	QueryByDepth(depth uint64) ([]*types.Event, error)
	Count() (int, error)
}

// AnchorStoreBackend persists finalized anchors, indexed by id and depth.
type AnchorStoreBackend interface {
	Put(a *types.Anchor) error
	Get(id types.AnchorID) (*types.Anchor, bool, error)
	GetByDepth(depth uint64) (*types.Anchor, bool, error)
	GetChain(fromDepth, toDepth uint64) ([]*types.Anchor, error)
	Count() (int, error)
}

// CFStoreBackend persists consensus frames.
type CFStoreBackend interface {
	PutPending(cf *types.ConsensusFrame) error
	GetPending(id types.CFID) (*types.ConsensusFrame, bool, error)
	PutFinalized(cf *types.ConsensusFrame) error
	GetFinalized(id types.CFID) (*types.ConsensusFrame, bool, error)
	MarkFinalized(id types.CFID) error
}

// Batch accumulates writes for one B4Store.CommitBatch call.
type Batch interface {
	PutLeaves(subnet types.SubnetID, leaves map[types.ObjectID][]byte)
	DeleteLeaves(subnet types.SubnetID, objectIDs []types.ObjectID)
	RegisterSubnet(subnet types.SubnetID)
	SetLastAnchor(subnet types.SubnetID, anchorID types.AnchorID)
	PutSubnetRoot(subnet types.SubnetID, anchorID types.AnchorID, root merkle.Hash)
	PutGlobalRoot(anchorID types.AnchorID, root merkle.Hash)
}

// B4Store is the atomic batch-commit surface for SMT state: every write
// staged via Batch either all lands or none does.
type B4Store interface {
	BeginBatch() Batch
	CommitBatch(b Batch) error
}
