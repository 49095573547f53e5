// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package reservation implements the concurrent TTL-guarded registry that
// keeps a candidate coin from being selected by two concurrent tasks.
package reservation

import (
	"context"
	"sync"
	"time"

	"github.com/luxfi/anchor/types"
	"golang.org/x/sync/errgroup"
)

// Registry is a concurrent map of reserved object ids to their expiry.
// Acquire is a non-blocking compare-and-set of the map entry.
type Registry struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[types.ObjectID]time.Time

	now func() time.Time
}

// New returns a Registry whose reservations expire after ttl.
func New(ttl time.Duration) *Registry {
	return &Registry{ttl: ttl, items: make(map[types.ObjectID]time.Time), now: time.Now}
}

// Acquire reserves id if it is not currently reserved (or its prior
// reservation has expired). Returns false if id is already validly
// reserved.
func (r *Registry) Acquire(id types.ObjectID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if exp, ok := r.items[id]; ok && r.now().Before(exp) {
		return false
	}
	r.items[id] = r.now().Add(r.ttl)
	return true
}

// IsReserved reports whether id is currently, validly reserved.
func (r *Registry) IsReserved(id types.ObjectID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.items[id]
	return ok && r.now().Before(exp)
}

// Release eagerly frees id, used on task completion or explicit
// cancellation rather than waiting out the TTL.
func (r *Registry) Release(id types.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

// sweep drops every expired entry, returning how many were evicted.
func (r *Registry) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, exp := range r.items {
		if !now.Before(exp) {
			delete(r.items, id)
			n++
		}
	}
	return n
}

// RunSweeper periodically evicts expired reservations until ctx is
// cancelled. Expiry itself is silent per spec.md §7 ("Reservation TTL
// expiry is silent; callers retry"); the sweeper only reclaims memory.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				r.sweep()
			}
		}
	})
	return g.Wait()
}
