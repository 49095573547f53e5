// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"github.com/luxfi/anchor/merkle"
	"github.com/luxfi/anchor/vlc"
	"github.com/luxfi/ids"
)

// MerkleRoots carries every commitment computed while folding a range of
// DAG events into an Anchor.
type MerkleRoots struct {
	EventsRoot      merkle.Hash
	GlobalStateRoot merkle.Hash
	PerSubnetRoots  map[SubnetID]merkle.Hash
	AnchorChainRoot merkle.Hash
}

// Anchor is the finalized output of one fold: a signed, Merkle-committed
// record covering a contiguous range of DAG events.
type Anchor struct {
	ID             AnchorID
	Depth          uint64
	EventIDs       []EventID
	VLC            vlc.Snapshot
	StateRoot      merkle.Hash // == Roots.GlobalStateRoot, kept for quick access
	Roots          MerkleRoots
	PreviousAnchor ids.ID // ids.Empty for the first anchor
	Timestamp      uint64
}

// NewAnchor builds an Anchor and computes its content-addressed id from
// (depth, event_ids, previous_anchor, state_root).
func NewAnchor(depth uint64, eventIDs []EventID, snap vlc.Snapshot, roots MerkleRoots, previous ids.ID, timestamp uint64) *Anchor {
	a := &Anchor{
		Depth:          depth,
		EventIDs:       eventIDs,
		VLC:            snap,
		StateRoot:      roots.GlobalStateRoot,
		Roots:          roots,
		PreviousAnchor: previous,
		Timestamp:      timestamp,
	}
	a.ID = IDFromHash(anchorPreimageHash(a))
	return a
}

func anchorPreimageHash(a *Anchor) merkle.Hash {
	var depthBuf [8]byte
	putUint64LE(depthBuf[:], a.Depth)
	chunks := make([][]byte, 0, len(a.EventIDs)+3)
	chunks = append(chunks, depthBuf[:])
	for _, id := range a.EventIDs {
		eid := id
		chunks = append(chunks, eid[:])
	}
	prev := a.PreviousAnchor
	chunks = append(chunks, prev[:])
	root := a.Roots.GlobalStateRoot
	chunks = append(chunks, root[:])
	return merkle.Sum256(flatten(chunks))
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func flatten(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
