// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package task implements the TaskPreparer: it resolves a user-facing
// transfer request into a fully specified SolverTask with coin selection,
// object reservation, and Merkle read-set proofs (spec.md §4.10).
package task

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/luxfi/anchor/merkle"
	"github.com/luxfi/anchor/task/reservation"
	"github.com/luxfi/anchor/types"
)

// taskID content-addresses a task from the chosen coin, amount, fee, and
// issuance time, so identical requests issued at different times get
// distinct task ids.
func taskID(coin types.ObjectID, amount, fee, now uint64) types.EventID {
	buf := make([]byte, 0, 32+24)
	buf = append(buf, coin[:]...)
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], amount)
	buf = append(buf, n[:]...)
	binary.LittleEndian.PutUint64(n[:], fee)
	buf = append(buf, n[:]...)
	binary.LittleEndian.PutUint64(n[:], now)
	buf = append(buf, n[:]...)
	return types.IDFromHash(merkle.Sum256(buf))
}

// StateProvider is the read surface the preparer needs from the state
// manager: coin enumeration by owner/type/subnet, inclusion proofs, and the
// last-modifier index used to derive causal parents.
type StateProvider interface {
	CoinsByOwner(owner, coinType string, subnet types.SubnetID) []types.Coin
	GetInclusionProof(subnet types.SubnetID, objectID types.ObjectID) *merkle.SparseProof
	LastModifier(objectID types.ObjectID) (types.EventID, bool)
	SubnetRoot(subnet types.SubnetID) merkle.Hash
}

// Preparer converts transfer requests into SolverTasks.
type Preparer struct {
	state        StateProvider
	reservations *reservation.Registry
}

// New returns a Preparer reading from state and reserving coins in
// reservations.
func New(state StateProvider, reservations *reservation.Registry) *Preparer {
	return &Preparer{state: state, reservations: reservations}
}

// PrepareTransfer implements spec.md §4.10's 8-step algorithm for a single
// transfer of amount+fee from sender, denominated in coinType, within
// subnet.
func (p *Preparer) PrepareTransfer(sender string, coinType string, subnet types.SubnetID, amount, fee uint64, gasBudget types.GasBudget, now uint64) (*types.SolverTask, error) {
	candidates := p.state.CoinsByOwner(sender, coinType, subnet)
	if len(candidates) == 0 {
		return nil, &PrepareError{Kind: ErrNoCoinsFound, Address: sender}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Balance < candidates[j].Balance })

	if amount > math.MaxUint64-fee {
		return nil, &PrepareError{Kind: ErrAmountOverflow, Address: sender}
	}
	required := amount + fee
	var chosen *types.Coin
	reservedCount := 0
	for i := range candidates {
		c := &candidates[i]
		if p.reservations.IsReserved(c.ID) {
			reservedCount++
			continue
		}
		if c.Balance >= required {
			chosen = c
			break
		}
	}
	if chosen == nil {
		if reservedCount == len(candidates) {
			return nil, &PrepareError{Kind: ErrAllCoinsReserved, Address: sender, CoinCount: len(candidates)}
		}
		best := candidates[len(candidates)-1]
		return nil, &PrepareError{Kind: ErrInsufficientBalance, Required: required, Available: best.Balance}
	}

	if !p.reservations.Acquire(chosen.ID) {
		return nil, &PrepareError{Kind: ErrAllCoinsReserved, Address: sender, CoinCount: len(candidates)}
	}

	resolved := types.ResolvedInputs{Objects: []types.ResolvedObject{{
		ObjectID: chosen.ID,
		Owner:    chosen.Owner,
		Version:  chosen.Version,
		CoinType: chosen.CoinType,
		Balance:  chosen.Balance,
	}}}

	proof := p.state.GetInclusionProof(subnet, chosen.ID)
	if proof == nil || proof.Leaf == nil {
		p.reservations.Release(chosen.ID)
		return nil, &PrepareError{Kind: ErrObjectNotFound, ObjectID: chosen.ID.String()}
	}

	readSet := []types.ReadSetEntry{{
		Key:   chosen.ID,
		Value: proof.Leaf.ValueHash[:],
		Proof: toEnclaveProof(proof),
	}}

	root := p.state.SubnetRoot(subnet)

	t := &types.SolverTask{
		TaskID:         taskID(chosen.ID, amount, fee, now),
		OperationType:  types.OperationTransfer,
		ResolvedInputs: resolved,
		ReadSet:        readSet,
		GasBudget:      gasBudget,
		PreStateRoot:   root,
		SubnetID:       subnet,
	}
	return t, nil
}

// CausalParents derives the parent event ids for a new event touching
// objectIDs, per spec.md §4.10 step 7: each touched object's last-modifier
// event becomes a parent, if one exists.
func (p *Preparer) CausalParents(objectIDs []types.ObjectID) []types.EventID {
	var parents []types.EventID
	for _, id := range objectIDs {
		if ev, ok := p.state.LastModifier(id); ok {
			parents = append(parents, ev)
		}
	}
	return parents
}

// toEnclaveProof converts a merkle.SparseProof into the enclave-facing
// MerkleProof encoding, mirroring the original's to_enclave_proof. PathBits
// is bottom-up like Siblings: PathBits[i] is true when the path node at that
// level is a right child (its key bit is set).
func toEnclaveProof(proof *merkle.SparseProof) *types.MerkleProof {
	siblings := make([][]byte, len(proof.Siblings))
	for i, s := range proof.Siblings {
		sib := s
		siblings[i] = sib[:]
	}
	var pathBits []bool
	if proof.Leaf != nil {
		pathBits = make([]bool, len(proof.Siblings))
		for i := range pathBits {
			pathBits[i] = proof.Leaf.Key.Bit(len(proof.Siblings) - 1 - i)
		}
	}
	leafIndex := 0
	return &types.MerkleProof{
		Siblings:  siblings,
		PathBits:  pathBits,
		LeafIndex: &leafIndex,
	}
}
