// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

// NodeInfo describes a network participant independent of its role as a
// validator.
type NodeInfo struct {
	ID      string
	Address string
	Port    uint16
	Stake   uint64
	Active  bool
}

// NewValidatorNode constructs an active node with zero stake.
func NewValidatorNode(id, address string, port uint16) NodeInfo {
	return NodeInfo{ID: id, Address: address, Port: port, Active: true}
}

// IsActive reports whether the node currently participates.
func (n NodeInfo) IsActive() bool { return n.Active }

// ValidatorInfo is a registered validator's consensus-facing state.
type ValidatorInfo struct {
	Node        NodeInfo
	IsLeader    bool
	LeaderRound uint64
}

// NewValidatorInfo wraps node as a validator entry.
func NewValidatorInfo(node NodeInfo, isLeader bool) ValidatorInfo {
	return ValidatorInfo{Node: node, IsLeader: isLeader}
}
