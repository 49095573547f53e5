// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state manages one Sparse Merkle Tree per subnet plus a global root
// SMT over subnet roots, with an atomic batch-commit (B4) discipline and a
// last-modifier index used to derive causal parents for new events.
package state

import (
	"sort"
	"sync"

	"github.com/luxfi/anchor/merkle"
	"github.com/luxfi/anchor/types"
)

// Change is one pending write against a subnet's object space. NewValue nil
// means delete.
type Change struct {
	ObjectID types.ObjectID
	NewValue []byte
}

// Manager owns one SMT per subnet and the global SMT over subnet roots.
// Object writes are staged in a pending batch that is applied atomically by
// Commit; readers always see the last committed trees. Subnet registration,
// the last-modifier index and last-anchor pointers are updated directly.
type Manager struct {
	mu             sync.RWMutex
	subnets        map[types.SubnetID]*merkle.Sparse
	registry       map[types.SubnetID]struct{} // mirrors the store's subnet registry cache
	lastModifier   map[types.ObjectID]types.EventID
	lastAnchorID   map[types.SubnetID]types.AnchorID

	pendingWrites map[types.SubnetID][]Change
	pendingSubnets map[types.SubnetID]struct{}
}

// New returns an empty state manager.
func New() *Manager {
	return &Manager{
		subnets:        make(map[types.SubnetID]*merkle.Sparse),
		registry:       make(map[types.SubnetID]struct{}),
		lastModifier:   make(map[types.ObjectID]types.EventID),
		lastAnchorID:   make(map[types.SubnetID]types.AnchorID),
		pendingWrites:  make(map[types.SubnetID][]Change),
		pendingSubnets: make(map[types.SubnetID]struct{}),
	}
}

func (m *Manager) subnetLocked(subnet types.SubnetID) *merkle.Sparse {
	s, ok := m.subnets[subnet]
	if !ok {
		s = merkle.NewSparse()
		m.subnets[subnet] = s
	}
	return s
}

// ApplyStateChange stages change against subnet, to be applied at the next
// Commit. It does not mutate the committed tree directly so that a failed
// commit leaves previously-committed state untouched.
func (m *Manager) ApplyStateChange(subnet types.SubnetID, change Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingWrites[subnet] = append(m.pendingWrites[subnet], change)
	m.pendingSubnets[subnet] = struct{}{}
}

// RecordModification updates the last-modifier index for objectID, used by
// the TaskPreparer to derive causal parents.
func (m *Manager) RecordModification(eventID types.EventID, objectID types.ObjectID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastModifier[objectID] = eventID
}

// LastModifier returns the event that last modified objectID, if any.
func (m *Manager) LastModifier(objectID types.ObjectID) (types.EventID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.lastModifier[objectID]
	return id, ok
}

// GetSubnetRoot returns subnet's current committed SMT root.
func (m *Manager) GetSubnetRoot(subnet types.SubnetID) merkle.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subnets[subnet]
	if !ok {
		return merkle.EmptyHash()
	}
	return s.Root()
}

// GetGlobalRoot computes the SMT root over (subnet_id -> subnet_root) for
// every registered subnet.
func (m *Manager) GetGlobalRoot() merkle.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.globalRootLocked()
}

func (m *Manager) globalRootLocked() merkle.Hash {
	global := merkle.NewSparse()
	ids := make([]types.SubnetID, 0, len(m.registry))
	for id := range m.registry {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessSubnetID(ids[i], ids[j]) })
	for _, id := range ids {
		root := merkle.EmptyHash()
		if s, ok := m.subnets[id]; ok {
			root = s.Root()
		}
		key := types.HashFromID(id)
		global.Insert(key, root[:])
	}
	return global.Root()
}

func lessSubnetID(a, b types.SubnetID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Clone returns a deep copy of m's committed state (subnets, registry,
// last-modifier index, last-anchor pointers), for speculative replay that
// must not affect m unless the replay's roots check out. Pending
// (uncommitted) writes are not carried over.
func (m *Manager) Clone() *Manager {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := New()
	for subnet, s := range m.subnets {
		c.subnets[subnet] = s.Clone()
	}
	for subnet := range m.registry {
		c.registry[subnet] = struct{}{}
	}
	for obj, ev := range m.lastModifier {
		c.lastModifier[obj] = ev
	}
	for subnet, anchorID := range m.lastAnchorID {
		c.lastAnchorID[subnet] = anchorID
	}
	return c
}

// RegisterSubnet ensures subnet has an (initially empty) SMT and appears in
// the global root computation.
func (m *Manager) RegisterSubnet(subnet types.SubnetID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subnetLocked(subnet)
	m.registry[subnet] = struct{}{}
}

// IsRegistered reports whether subnet has been registered.
func (m *Manager) IsRegistered(subnet types.SubnetID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.registry[subnet]
	return ok
}

// CommitResult summarizes one Commit call's effect, returned for the anchor
// builder to embed in MerkleRoots.
type CommitResult struct {
	GlobalRoot     merkle.Hash
	PerSubnetRoots map[types.SubnetID]merkle.Hash
}

// Commit atomically applies every pending write staged since the previous
// Commit (or rollback), registering any newly-touched subnets, and records
// anchorID as each touched subnet's last-anchor pointer. All pending writes
// succeed together; Commit never partially applies a batch.
func (m *Manager) Commit(anchorID types.AnchorID) CommitResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	touched := make(map[types.SubnetID]struct{}, len(m.pendingWrites))
	for subnet, changes := range m.pendingWrites {
		s := m.subnetLocked(subnet)
		m.registry[subnet] = struct{}{}
		for _, c := range changes {
			key := types.HashFromID(c.ObjectID)
			if c.NewValue == nil {
				s.Remove(key)
			} else {
				s.Insert(key, c.NewValue)
			}
		}
		touched[subnet] = struct{}{}
	}
	for subnet := range touched {
		m.lastAnchorID[subnet] = anchorID
	}
	m.pendingWrites = make(map[types.SubnetID][]Change)
	m.pendingSubnets = make(map[types.SubnetID]struct{})

	result := CommitResult{
		GlobalRoot:     m.globalRootLocked(),
		PerSubnetRoots: make(map[types.SubnetID]merkle.Hash, len(touched)),
	}
	for subnet := range touched {
		result.PerSubnetRoots[subnet] = m.subnets[subnet].Root()
	}
	return result
}

// Rollback discards every staged write without touching committed state.
func (m *Manager) Rollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingWrites = make(map[types.SubnetID][]Change)
	m.pendingSubnets = make(map[types.SubnetID]struct{})
}

// LastAnchor returns the anchor id last committed for subnet, if any.
func (m *Manager) LastAnchor(subnet types.SubnetID) (types.AnchorID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.lastAnchorID[subnet]
	return id, ok
}

// SetLastAnchor overwrites subnet's last-anchor pointer. Used by the Folder
// once an anchor's id is known, since Commit must run before the anchor
// preimage (which folds in the post-commit global root) can be hashed.
func (m *Manager) SetLastAnchor(subnet types.SubnetID, anchorID types.AnchorID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAnchorID[subnet] = anchorID
}

// ReloadRegistry replaces the in-memory registry cache with subnets, the
// crash-recovery path described in spec.md §9: a process restart reloads
// the registered-subnet cache from the store so it converges even if a
// commit crashed between the in-memory update and the durable write.
func (m *Manager) ReloadRegistry(subnets []types.SubnetID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry = make(map[types.SubnetID]struct{}, len(subnets))
	for _, id := range subnets {
		m.registry[id] = struct{}{}
		m.subnetLocked(id)
	}
}

// GetObject returns the raw value stored at objectID in subnet's committed
// tree.
func (m *Manager) GetObject(subnet types.SubnetID, objectID types.ObjectID) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subnets[subnet]
	if !ok {
		return nil, false
	}
	return s.Get(types.HashFromID(objectID))
}

// GetInclusionProof returns a SparseProof for objectID against subnet's
// committed tree, for attaching to a TaskPreparer read-set entry.
func (m *Manager) GetInclusionProof(subnet types.SubnetID, objectID types.ObjectID) *merkle.SparseProof {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subnets[subnet]
	if !ok {
		s = merkle.NewSparse()
	}
	return s.GetProof(types.HashFromID(objectID))
}
