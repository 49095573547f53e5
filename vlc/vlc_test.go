// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vlc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClockNew(t *testing.T) {
	r := require.New(t)
	c := New("node1")
	r.Equal("node1", c.NodeID())
	r.Equal(uint64(0), c.LogicalTime())
}

func TestClockTick(t *testing.T) {
	r := require.New(t)
	c := New("node1")
	c.Tick()
	r.Equal(uint64(1), c.LogicalTime())
	c.Tick()
	r.Equal(uint64(2), c.LogicalTime())
}

func TestClockMerge(t *testing.T) {
	r := require.New(t)
	c1 := New("node1")
	c2 := New("node2")

	c1.Tick()
	c1.Tick()
	c2.Tick()

	c2.Merge(c1.Snapshot())

	// max(1, 2) + 1 = 3
	r.Equal(uint64(3), c2.LogicalTime())
}

func TestClockHappensBefore(t *testing.T) {
	r := require.New(t)
	c1 := New("node1")
	c2 := New("node2")

	c1.Tick()
	snap1 := c1.Snapshot()

	c2.Merge(snap1)
	snap2 := c2.Snapshot()

	r.True(snap1.HappensBefore(snap2))
	r.False(snap2.HappensBefore(snap1))
}

func TestClockConcurrent(t *testing.T) {
	r := require.New(t)
	c1 := New("node1")
	c2 := New("node2")

	c1.Tick()
	c2.Tick()

	r.True(c1.Snapshot().IsConcurrent(c2.Snapshot()))
}

func TestClockGCInactiveNodes(t *testing.T) {
	r := require.New(t)
	c := New("node1")
	c.Merge(Snapshot{VectorClock: VectorClock{"node2": 5, "node3": 2}})

	removed := c.GCInactiveNodes([]string{"node1", "node2"})
	r.Equal(1, removed)
	r.Equal(uint64(0), c.Get("node3"))
	r.Equal(uint64(5), c.Get("node2"))
}

func TestClockRestoreFromSnapshot(t *testing.T) {
	r := require.New(t)
	c := New("node1")
	c.Tick()
	c.Tick()

	other := New("node2")
	other.Tick()
	snap := other.Snapshot()

	c.RestoreFromSnapshot(snap)
	r.Equal(uint64(1), c.LogicalTime())
	r.Equal(uint64(1), c.Get("node2"))
}
