// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package memstore is the default, in-memory implementation of the store
// traits: suitable for single-process nodes and tests.
package memstore

import (
	"sync"

	"github.com/luxfi/anchor/merkle"
	"github.com/luxfi/anchor/store"
	"github.com/luxfi/anchor/types"
)

// EventStore is an in-memory EventStoreBackend.
type EventStore struct {
	mu     sync.RWMutex
	events map[types.EventID]*types.Event
}

// NewEventStore returns an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{events: make(map[types.EventID]*types.Event)}
}

func (s *EventStore) Put(e *types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
	return nil
}

func (s *EventStore) Get(id types.EventID) (*types.Event, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	return e, ok, nil
}

func (s *EventStore) GetMany(ids []types.EventID) ([]*types.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.events[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *EventStore) Delete(id types.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
	return nil
}

func (s *EventStore) QueryByStatus(status types.EventStatus) ([]*types.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Event
	for _, e := range s.events {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *EventStore) QueryByCreator(creator string) ([]*types.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Event
	for _, e := range s.events {
		if e.Creator == creator {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *EventStore) QueryByDepth(depth uint64) ([]*types.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Event
	for _, e := range s.events {
		if e.Depth() == depth {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *EventStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

var _ store.EventStoreBackend = (*EventStore)(nil)

// AnchorStore is an in-memory AnchorStoreBackend.
type AnchorStore struct {
	mu       sync.RWMutex
	byID     map[types.AnchorID]*types.Anchor
	byDepth  map[uint64]*types.Anchor
}

// NewAnchorStore returns an empty AnchorStore.
func NewAnchorStore() *AnchorStore {
	return &AnchorStore{byID: make(map[types.AnchorID]*types.Anchor), byDepth: make(map[uint64]*types.Anchor)}
}

func (s *AnchorStore) Put(a *types.Anchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[a.ID] = a
	s.byDepth[a.Depth] = a
	return nil
}

func (s *AnchorStore) Get(id types.AnchorID) (*types.Anchor, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	return a, ok, nil
}

func (s *AnchorStore) GetByDepth(depth uint64) (*types.Anchor, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byDepth[depth]
	return a, ok, nil
}

func (s *AnchorStore) GetChain(fromDepth, toDepth uint64) ([]*types.Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Anchor
	for d := fromDepth; d <= toDepth; d++ {
		if a, ok := s.byDepth[d]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *AnchorStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

var _ store.AnchorStoreBackend = (*AnchorStore)(nil)

// CFStore is an in-memory CFStoreBackend.
type CFStore struct {
	mu        sync.RWMutex
	pending   map[types.CFID]*types.ConsensusFrame
	finalized map[types.CFID]*types.ConsensusFrame
}

// NewCFStore returns an empty CFStore.
func NewCFStore() *CFStore {
	return &CFStore{
		pending:   make(map[types.CFID]*types.ConsensusFrame),
		finalized: make(map[types.CFID]*types.ConsensusFrame),
	}
}

func (s *CFStore) PutPending(cf *types.ConsensusFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[cf.ID] = cf
	return nil
}

func (s *CFStore) GetPending(id types.CFID) (*types.ConsensusFrame, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cf, ok := s.pending[id]
	return cf, ok, nil
}

func (s *CFStore) PutFinalized(cf *types.ConsensusFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized[cf.ID] = cf
	return nil
}

func (s *CFStore) GetFinalized(id types.CFID) (*types.ConsensusFrame, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cf, ok := s.finalized[id]
	return cf, ok, nil
}

func (s *CFStore) MarkFinalized(id types.CFID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cf, ok := s.pending[id]; ok {
		delete(s.pending, id)
		s.finalized[id] = cf
	}
	return nil
}

var _ store.CFStoreBackend = (*CFStore)(nil)

// batch accumulates writes for one B4 commit, applied atomically by Store.
type batch struct {
	putLeaves      map[types.SubnetID]map[types.ObjectID][]byte
	deleteLeaves   map[types.SubnetID][]types.ObjectID
	registerSubnet map[types.SubnetID]struct{}
	lastAnchor     map[types.SubnetID]types.AnchorID
	subnetRoots    map[types.SubnetID]merkle.Hash
	globalRoot     *merkle.Hash
	globalAnchor   types.AnchorID
}

func newBatch() *batch {
	return &batch{
		putLeaves:      make(map[types.SubnetID]map[types.ObjectID][]byte),
		deleteLeaves:   make(map[types.SubnetID][]types.ObjectID),
		registerSubnet: make(map[types.SubnetID]struct{}),
		lastAnchor:     make(map[types.SubnetID]types.AnchorID),
		subnetRoots:    make(map[types.SubnetID]merkle.Hash),
	}
}

func (b *batch) PutLeaves(subnet types.SubnetID, leaves map[types.ObjectID][]byte) {
	if b.putLeaves[subnet] == nil {
		b.putLeaves[subnet] = make(map[types.ObjectID][]byte, len(leaves))
	}
	for k, v := range leaves {
		b.putLeaves[subnet][k] = v
	}
}

func (b *batch) DeleteLeaves(subnet types.SubnetID, objectIDs []types.ObjectID) {
	b.deleteLeaves[subnet] = append(b.deleteLeaves[subnet], objectIDs...)
}

func (b *batch) RegisterSubnet(subnet types.SubnetID) {
	b.registerSubnet[subnet] = struct{}{}
}

func (b *batch) SetLastAnchor(subnet types.SubnetID, anchorID types.AnchorID) {
	b.lastAnchor[subnet] = anchorID
}

func (b *batch) PutSubnetRoot(subnet types.SubnetID, anchorID types.AnchorID, root merkle.Hash) {
	b.subnetRoots[subnet] = root
}

func (b *batch) PutGlobalRoot(anchorID types.AnchorID, root merkle.Hash) {
	r := root
	b.globalRoot = &r
	b.globalAnchor = anchorID
}

// Store is an in-memory B4Store: CommitBatch applies every staged write in
// one critical section, so a caller never observes a partial batch.
type Store struct {
	mu sync.Mutex

	leaves         map[types.SubnetID]map[types.ObjectID][]byte
	registeredSubnets map[types.SubnetID]struct{}
	lastAnchor     map[types.SubnetID]types.AnchorID
	subnetRoots    map[types.SubnetID]map[types.AnchorID]merkle.Hash
	globalRoots    map[types.AnchorID]merkle.Hash
}

// New returns an empty B4 store.
func New() *Store {
	return &Store{
		leaves:            make(map[types.SubnetID]map[types.ObjectID][]byte),
		registeredSubnets: make(map[types.SubnetID]struct{}),
		lastAnchor:        make(map[types.SubnetID]types.AnchorID),
		subnetRoots:       make(map[types.SubnetID]map[types.AnchorID]merkle.Hash),
		globalRoots:       make(map[types.AnchorID]merkle.Hash),
	}
}

// BeginBatch returns a fresh, detached batch to stage writes into.
func (s *Store) BeginBatch() store.Batch {
	return newBatch()
}

// CommitBatch applies b atomically.
func (s *Store) CommitBatch(b store.Batch) error {
	bb, ok := b.(*batch)
	if !ok {
		return types.ErrCommitFailed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for subnet, leaves := range bb.putLeaves {
		if s.leaves[subnet] == nil {
			s.leaves[subnet] = make(map[types.ObjectID][]byte, len(leaves))
		}
		for k, v := range leaves {
			s.leaves[subnet][k] = v
		}
	}
	for subnet, ids := range bb.deleteLeaves {
		for _, id := range ids {
			delete(s.leaves[subnet], id)
		}
	}
	for subnet := range bb.registerSubnet {
		s.registeredSubnets[subnet] = struct{}{}
	}
	for subnet, anchorID := range bb.lastAnchor {
		s.lastAnchor[subnet] = anchorID
	}
	for subnet, root := range bb.subnetRoots {
		if s.subnetRoots[subnet] == nil {
			s.subnetRoots[subnet] = make(map[types.AnchorID]merkle.Hash)
		}
		s.subnetRoots[subnet][bb.globalAnchor] = root
	}
	if bb.globalRoot != nil {
		s.globalRoots[bb.globalAnchor] = *bb.globalRoot
	}
	return nil
}

// RegisteredSubnets returns every subnet id the committed registry knows
// about, used to reload the state manager's cache on restart.
func (s *Store) RegisteredSubnets() []types.SubnetID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.SubnetID, 0, len(s.registeredSubnets))
	for id := range s.registeredSubnets {
		out = append(out, id)
	}
	return out
}

var _ store.B4Store = (*Store)(nil)
