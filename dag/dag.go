// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dag implements the in-memory DAG of events: content-addressed
// storage keyed by event id, parent/child indexes, tip tracking, depth
// computation and ancestor queries.
package dag

import (
	"sort"
	"sync"

	"github.com/luxfi/anchor/types"
)

// node is the DAG's internal wrapper around a stored event.
type node struct {
	event    *types.Event
	children map[types.EventID]struct{}
}

// Dag is an in-memory, thread-safe set of events connected by parent links.
type Dag struct {
	mu       sync.RWMutex
	nodes    map[types.EventID]*node
	tips     map[types.EventID]struct{}
	maxDepth uint64
}

// New returns an empty DAG.
func New() *Dag {
	return &Dag{
		nodes: make(map[types.EventID]*node),
		tips:  make(map[types.EventID]struct{}),
	}
}

// AddEvent inserts e, computing its depth from its parents.
//
// Returns ErrDuplicateEvent if e.ID is already present, or ErrMissingParent
// if any parent is not yet known. Events never enter a pending/orphan
// buffer here: callers (the engine) are responsible for fetching missing
// parents before retrying.
func (d *Dag) AddEvent(e *types.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.nodes[e.ID]; ok {
		return types.ErrDuplicateEvent
	}

	var depth uint64
	if len(e.ParentIDs) == 0 {
		depth = 0
	} else {
		maxParentDepth := uint64(0)
		for _, pid := range e.ParentIDs {
			if pid == e.ID {
				return types.ErrCycleDetected
			}
			pn, ok := d.nodes[pid]
			if !ok {
				return types.ErrMissingParent
			}
			if pn.event.Depth() > maxParentDepth {
				maxParentDepth = pn.event.Depth()
			}
		}
		depth = maxParentDepth + 1
	}
	e.SetDepth(depth)

	n := &node{event: e, children: make(map[types.EventID]struct{})}
	d.nodes[e.ID] = n
	d.tips[e.ID] = struct{}{}

	for _, pid := range e.ParentIDs {
		d.nodes[pid].children[e.ID] = struct{}{}
		delete(d.tips, pid)
	}

	if depth > d.maxDepth {
		d.maxDepth = depth
	}
	return nil
}

// AddEventIdempotent is AddEvent but treats ErrDuplicateEvent as success,
// matching the engine's idempotent network-replay path.
func (d *Dag) AddEventIdempotent(e *types.Event) error {
	if err := d.AddEvent(e); err != nil && err != types.ErrDuplicateEvent {
		return err
	}
	return nil
}

// Contains reports whether id is present.
func (d *Dag) Contains(id types.EventID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.nodes[id]
	return ok
}

// GetEvent returns the event for id, if present.
func (d *Dag) GetEvent(id types.EventID) (*types.Event, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[id]
	if !ok {
		return nil, false
	}
	return n.event, true
}

// GetEvents resolves a batch of ids, returning only those present.
func (d *Dag) GetEvents(ids []types.EventID) []*types.Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*types.Event, 0, len(ids))
	for _, id := range ids {
		if n, ok := d.nodes[id]; ok {
			out = append(out, n.event)
		}
	}
	return out
}

// MissingParents returns which of e's declared parents are not yet known.
func (d *Dag) MissingParents(e *types.Event) []types.EventID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var missing []types.EventID
	for _, pid := range e.ParentIDs {
		if _, ok := d.nodes[pid]; !ok {
			missing = append(missing, pid)
		}
	}
	return missing
}

// GetTips returns the current set of childless events.
func (d *Dag) GetTips() []types.EventID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]types.EventID, 0, len(d.tips))
	for id := range d.tips {
		out = append(out, id)
	}
	return out
}

// GenesisEvents returns all depth-0 events.
func (d *Dag) GenesisEvents() []*types.Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*types.Event
	for _, n := range d.nodes {
		if n.event.Depth() == 0 {
			out = append(out, n.event)
		}
	}
	return out
}

// GetEventsInRange returns events with depth in [lo, hi], stably sorted by
// (depth, id).
func (d *Dag) GetEventsInRange(lo, hi uint64) []*types.Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*types.Event
	for _, n := range d.nodes {
		depth := n.event.Depth()
		if depth >= lo && depth <= hi {
			out = append(out, n.event)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth() != out[j].Depth() {
			return out[i].Depth() < out[j].Depth()
		}
		return lessEventID(out[i].ID, out[j].ID)
	})
	return out
}

func lessEventID(a, b types.EventID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// IsAncestor reports whether a is an ancestor of b via a BFS over b's
// parents, early-exiting once a is found.
func (d *Dag) IsAncestor(a, b types.EventID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if a == b {
		return false
	}
	visited := map[types.EventID]struct{}{b: {}}
	queue := []types.EventID{b}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		n, ok := d.nodes[cur]
		if !ok {
			continue
		}
		for _, pid := range n.event.ParentIDs {
			if pid == a {
				return true
			}
			if _, seen := visited[pid]; !seen {
				visited[pid] = struct{}{}
				queue = append(queue, pid)
			}
		}
	}
	return false
}

// HappensBefore is an alias for IsAncestor matching the VLC-flavored name
// used elsewhere in the spec.
func (d *Dag) HappensBefore(a, b types.EventID) bool {
	return d.IsAncestor(a, b)
}

// MaxDepth returns the highest depth observed so far.
func (d *Dag) MaxDepth() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.maxDepth
}

// NodeCount returns the number of stored events.
func (d *Dag) NodeCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes)
}

// ConfirmEvent transitions id's status to status (Confirmed or Finalized).
func (d *Dag) ConfirmEvent(id types.EventID, status types.EventStatus) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[id]
	if !ok {
		return false
	}
	n.event.Status = status
	return true
}

// Stats summarizes the DAG for diagnostics and the engine's status reports.
type Stats struct {
	NodeCount     int
	GenesisCount  int
	TipCount      int
	MaxDepth      uint64
	FinalizedCount int
}

// Stats computes a snapshot of DAG statistics.
func (d *Dag) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := Stats{NodeCount: len(d.nodes), TipCount: len(d.tips), MaxDepth: d.maxDepth}
	for _, n := range d.nodes {
		if n.event.Depth() == 0 {
			s.GenesisCount++
		}
		if n.event.Status == types.EventFinalized {
			s.FinalizedCount++
		}
	}
	return s
}
