// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package broadcast defines the network capability the engine depends on:
// publishing events/CFs/votes/finalizations and fetching events missing
// from a local DAG. The engine treats a nil Broadcaster as internal-only
// mode (no failure, just no propagation).
package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/anchor/types"
)

// Result reports how many peers acknowledged a broadcast out of how many
// were attempted.
type Result struct {
	SuccessCount int
	TotalPeers   int
}

// Broadcaster is the network capability consumed by the engine. Every
// method is a suspension point and must not be called while holding one of
// the engine's substructure locks.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, e *types.Event) (Result, error)
	BroadcastCF(ctx context.Context, cf *types.ConsensusFrame) (Result, error)
	BroadcastVote(ctx context.Context, v types.Vote) (Result, error)
	BroadcastFinalized(ctx context.Context, cfID types.CFID) (Result, error)
	RequestEvents(ctx context.Context, ids []types.EventID) ([]*types.Event, error)
}

// Noop is a Broadcaster that acknowledges everything locally and can never
// fetch missing events; useful for single-node testing and as the fallback
// when no broadcaster has been wired.
type Noop struct{}

func (Noop) BroadcastEvent(context.Context, *types.Event) (Result, error) { return Result{}, nil }
func (Noop) BroadcastCF(context.Context, *types.ConsensusFrame) (Result, error) {
	return Result{}, nil
}
func (Noop) BroadcastVote(context.Context, types.Vote) (Result, error) { return Result{}, nil }
func (Noop) BroadcastFinalized(context.Context, types.CFID) (Result, error) {
	return Result{}, nil
}
func (Noop) RequestEvents(context.Context, []types.EventID) ([]*types.Event, error) {
	return nil, nil
}

var _ Broadcaster = Noop{}

// timeoutBroadcaster bounds every call to inner by timeout, per spec.md §6
// ("Broadcaster calls have per-call timeouts"), folding a deadline exceeded
// into types.ErrBroadcastFailed so callers can distinguish a timed-out call
// from an application-level rejection.
type timeoutBroadcaster struct {
	inner   Broadcaster
	timeout time.Duration
}

// WithTimeout wraps b so every call is bounded by timeout.
func WithTimeout(b Broadcaster, timeout time.Duration) Broadcaster {
	return &timeoutBroadcaster{inner: b, timeout: timeout}
}

func wrapTimeout(ctx context.Context, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: call exceeded %s", types.ErrBroadcastFailed, timeout)
	}
	return err
}

func (t *timeoutBroadcaster) BroadcastEvent(ctx context.Context, e *types.Event) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	res, err := t.inner.BroadcastEvent(ctx, e)
	return res, wrapTimeout(ctx, t.timeout, err)
}

func (t *timeoutBroadcaster) BroadcastCF(ctx context.Context, cf *types.ConsensusFrame) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	res, err := t.inner.BroadcastCF(ctx, cf)
	return res, wrapTimeout(ctx, t.timeout, err)
}

func (t *timeoutBroadcaster) BroadcastVote(ctx context.Context, v types.Vote) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	res, err := t.inner.BroadcastVote(ctx, v)
	return res, wrapTimeout(ctx, t.timeout, err)
}

func (t *timeoutBroadcaster) BroadcastFinalized(ctx context.Context, cfID types.CFID) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	res, err := t.inner.BroadcastFinalized(ctx, cfID)
	return res, wrapTimeout(ctx, t.timeout, err)
}

func (t *timeoutBroadcaster) RequestEvents(ctx context.Context, ids []types.EventID) ([]*types.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	events, err := t.inner.RequestEvents(ctx, ids)
	return events, wrapTimeout(ctx, t.timeout, err)
}

var _ Broadcaster = (*timeoutBroadcaster)(nil)
