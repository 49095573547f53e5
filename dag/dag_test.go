// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dag

import (
	"testing"

	"github.com/luxfi/anchor/types"
	"github.com/luxfi/anchor/vlc"
	"github.com/stretchr/testify/require"
)

func genesisEvent(t *testing.T, creator string, tick uint64) *types.Event {
	t.Helper()
	c := vlc.New(creator)
	for i := uint64(0); i < tick; i++ {
		c.Tick()
	}
	return types.NewGenesisEvent(creator, c.Snapshot(), 1000+tick)
}

func childEvent(t *testing.T, creator string, parents []types.EventID, snap vlc.Snapshot, ts uint64) *types.Event {
	t.Helper()
	return types.NewEvent(types.SystemPayload{Note: "child"}, parents, snap, creator, ts)
}

func TestDagCreationIsEmpty(t *testing.T) {
	d := New()
	require.Equal(t, 0, d.NodeCount())
	require.Empty(t, d.GetTips())
	require.Equal(t, uint64(0), d.MaxDepth())
}

func TestAddGenesisEvent(t *testing.T) {
	d := New()
	g := genesisEvent(t, "v1", 0)
	require.NoError(t, d.AddEvent(g))
	require.Equal(t, uint64(0), g.Depth())
	require.True(t, d.Contains(g.ID))
	require.ElementsMatch(t, []types.EventID{g.ID}, d.GetTips())
	require.Len(t, d.GenesisEvents(), 1)
}

func TestAddEventDuplicateRejected(t *testing.T) {
	d := New()
	g := genesisEvent(t, "v1", 0)
	require.NoError(t, d.AddEvent(g))
	require.ErrorIs(t, d.AddEvent(g), types.ErrDuplicateEvent)
}

func TestAddEventMissingParentRejected(t *testing.T) {
	d := New()
	ghost := genesisEvent(t, "v1", 0)
	child := childEvent(t, "v1", []types.EventID{ghost.ID}, ghost.VLC, 1001)
	require.ErrorIs(t, d.AddEvent(child), types.ErrMissingParent)
	require.ElementsMatch(t, []types.EventID{ghost.ID}, d.MissingParents(child))
}

func TestAddChildEventComputesDepth(t *testing.T) {
	d := New()
	c := vlc.New("v1")
	g := types.NewGenesisEvent("v1", c.Snapshot(), 1000)
	require.NoError(t, d.AddEvent(g))

	c.Tick()
	child := childEvent(t, "v1", []types.EventID{g.ID}, c.Snapshot(), 1001)
	require.NoError(t, d.AddEvent(child))

	require.Equal(t, uint64(1), child.Depth())
	require.Equal(t, uint64(1), d.MaxDepth())
	require.ElementsMatch(t, []types.EventID{child.ID}, d.GetTips())
}

func TestAddEventIdempotentAcceptsDuplicate(t *testing.T) {
	d := New()
	g := genesisEvent(t, "v1", 0)
	require.NoError(t, d.AddEventIdempotent(g))
	require.NoError(t, d.AddEventIdempotent(g))
}

func TestHappensBeforeViaAncestorBFS(t *testing.T) {
	d := New()
	c := vlc.New("v1")
	g := types.NewGenesisEvent("v1", c.Snapshot(), 1000)
	require.NoError(t, d.AddEvent(g))

	c.Tick()
	mid := childEvent(t, "v1", []types.EventID{g.ID}, c.Snapshot(), 1001)
	require.NoError(t, d.AddEvent(mid))

	c.Tick()
	tip := childEvent(t, "v1", []types.EventID{mid.ID}, c.Snapshot(), 1002)
	require.NoError(t, d.AddEvent(tip))

	require.True(t, d.IsAncestor(g.ID, tip.ID))
	require.True(t, d.HappensBefore(mid.ID, tip.ID))
	require.False(t, d.IsAncestor(tip.ID, g.ID))
	require.False(t, d.IsAncestor(g.ID, g.ID))
}

func TestFinalizeEvent(t *testing.T) {
	d := New()
	g := genesisEvent(t, "v1", 0)
	require.NoError(t, d.AddEvent(g))
	require.True(t, d.ConfirmEvent(g.ID, types.EventFinalized))

	ev, ok := d.GetEvent(g.ID)
	require.True(t, ok)
	require.Equal(t, types.EventFinalized, ev.Status)

	require.False(t, d.ConfirmEvent(types.EventID{}, types.EventFinalized))
}

func TestDagStats(t *testing.T) {
	d := New()
	c := vlc.New("v1")
	g := types.NewGenesisEvent("v1", c.Snapshot(), 1000)
	require.NoError(t, d.AddEvent(g))
	c.Tick()
	child := childEvent(t, "v1", []types.EventID{g.ID}, c.Snapshot(), 1001)
	require.NoError(t, d.AddEvent(child))
	require.True(t, d.ConfirmEvent(g.ID, types.EventFinalized))

	s := d.Stats()
	require.Equal(t, 2, s.NodeCount)
	require.Equal(t, 1, s.GenesisCount)
	require.Equal(t, 1, s.TipCount)
	require.Equal(t, uint64(1), s.MaxDepth)
	require.Equal(t, 1, s.FinalizedCount)
}

func TestGetEventsInRangeStableSort(t *testing.T) {
	d := New()
	c := vlc.New("v1")
	g := types.NewGenesisEvent("v1", c.Snapshot(), 1000)
	require.NoError(t, d.AddEvent(g))
	c.Tick()
	a := childEvent(t, "v1", []types.EventID{g.ID}, c.Snapshot(), 1001)
	require.NoError(t, d.AddEvent(a))
	c2 := vlc.New("v2")
	c2.Merge(g.VLC)
	b := childEvent(t, "v2", []types.EventID{g.ID}, c2.Snapshot(), 1002)
	require.NoError(t, d.AddEvent(b))

	events := d.GetEventsInRange(1, 1)
	require.Len(t, events, 2)
	require.True(t, lessEventID(events[0].ID, events[1].ID) || events[0].ID == events[1].ID)
}
