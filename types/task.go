// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "github.com/luxfi/ids"

// OperationType identifies the kind of enclave computation a SolverTask asks
// for.
type OperationType int

const (
	OperationTransfer OperationType = iota
	OperationFullTransfer
)

// GasBudget bounds the enclave execution allotted to a task.
type GasBudget struct {
	MaxComputeUnits uint64
	MaxMemoryBytes  uint64
}

// GasUsage reports actual consumption after execution.
type GasUsage struct {
	ComputeUnits uint64
	MemoryBytes  uint64
}

// ResolvedObject is one object the TaskPreparer has located and pinned for
// the task's execution.
type ResolvedObject struct {
	ObjectID ObjectID
	Owner    string
	Version  uint64
	CoinType string
	Balance  uint64
}

// ResolvedInputs carries every object the enclave will read or mutate,
// resolved ahead of time by the TaskPreparer.
type ResolvedInputs struct {
	Objects []ResolvedObject
}

// MerkleProof is the enclave-facing encoding of an inclusion proof: sibling
// hashes bottom-up plus the traversed path bits.
type MerkleProof struct {
	Siblings  [][]byte
	PathBits  []bool
	LeafIndex *int
}

// ReadSetEntry is one object read by a task, with the SHA-256 hash of its
// committed value (the value hash stored in its SMT leaf) and an inclusion
// proof against the subnet root at issuance time.
type ReadSetEntry struct {
	Key   ObjectID
	Value []byte
	Proof *MerkleProof
}

// SolverTask is the fully resolved enclave input the TaskPreparer emits.
type SolverTask struct {
	TaskID         ids.ID
	OperationType  OperationType
	ResolvedInputs ResolvedInputs
	ReadSet        []ReadSetEntry
	GasBudget      GasBudget
	PreStateRoot   [32]byte
	SubnetID       SubnetID
}
