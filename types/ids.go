// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types defines the data model shared across the anchor module:
// events, anchors, consensus frames, votes, validators, and coin objects.
package types

import (
	"github.com/luxfi/anchor/merkle"
	"github.com/luxfi/ids"
)

// EventID content-addresses an Event by its creator, timestamp, parent_ids,
// and VLC snapshot.
type EventID = ids.ID

// AnchorID content-addresses a finalized Anchor.
type AnchorID = ids.ID

// CFID content-addresses a ConsensusFrame.
type CFID = ids.ID

// ObjectID content-addresses a state object (coin) within a subnet.
type ObjectID = ids.ID

// SubnetID namespaces an isolated SMT + object space.
type SubnetID = ids.ID

// RootSubnetID is the system subnet used for global operations.
var RootSubnetID = ids.Empty

// IDFromHash reinterprets a merkle.Hash as an ids.ID (both are 32-byte
// digests); used at the boundary between the merkle package and the typed
// domain model.
func IDFromHash(h merkle.Hash) ids.ID {
	return ids.ID(h)
}

// HashFromID reinterprets an ids.ID as a merkle.Hash.
func HashFromID(id ids.ID) merkle.Hash {
	return merkle.Hash(id)
}
