// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"fmt"
)

const keyBits = HashLength * 8 // 256

type sparseEntry struct {
	key   Hash
	value []byte
}

// Sparse is a 256-bit keyed sparse Merkle tree used for per-subnet object
// state. Unlike the reference implementation it was ported from (see
// DESIGN.md), it treats every key as occupying a unique leaf position in a
// full fixed-depth-256 binary tree, so every proof is exactly 256 siblings
// deep and non-inclusion needs no "neighbor leaf" special-casing.
type Sparse struct {
	leaves map[Hash]sparseEntry
}

// NewSparse returns an empty sparse Merkle tree.
func NewSparse() *Sparse {
	return &Sparse{leaves: make(map[Hash]sparseEntry)}
}

// Len returns the number of populated leaves.
func (t *Sparse) Len() int {
	return len(t.leaves)
}

// IsEmpty reports whether the tree has no leaves.
func (t *Sparse) IsEmpty() bool {
	return len(t.leaves) == 0
}

// Get returns the value stored at key, if any.
func (t *Sparse) Get(key Hash) ([]byte, bool) {
	e, ok := t.leaves[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Contains reports whether key is populated.
func (t *Sparse) Contains(key Hash) bool {
	_, ok := t.leaves[key]
	return ok
}

// Insert sets key to value, returning the previous value if any.
func (t *Sparse) Insert(key Hash, value []byte) ([]byte, bool) {
	old, had := t.leaves[key]
	t.leaves[key] = sparseEntry{key: key, value: value}
	if had {
		return old.value, true
	}
	return nil, false
}

// Remove deletes key, returning its value if it existed.
func (t *Sparse) Remove(key Hash) ([]byte, bool) {
	old, had := t.leaves[key]
	if !had {
		return nil, false
	}
	delete(t.leaves, key)
	return old.value, true
}

// Clone returns a deep copy of t, for speculative replay that must not
// mutate the original until the replay is verified.
func (t *Sparse) Clone() *Sparse {
	leaves := make(map[Hash]sparseEntry, len(t.leaves))
	for k, v := range t.leaves {
		leaves[k] = v
	}
	return &Sparse{leaves: leaves}
}

// BatchInsert inserts every (key, value) pair; the root is computed on
// demand by Root.
func (t *Sparse) BatchInsert(entries map[Hash][]byte) {
	for k, v := range entries {
		t.leaves[k] = sparseEntry{key: k, value: v}
	}
}

// Root returns the deterministic root hash of the tree.
func (t *Sparse) Root() Hash {
	return subtreeHash(t.entrySlice(), 0)
}

func (t *Sparse) entrySlice() []sparseEntry {
	out := make([]sparseEntry, 0, len(t.leaves))
	for _, e := range t.leaves {
		out = append(out, e)
	}
	return out
}

func partitionEntries(entries []sparseEntry, depth int) (left, right []sparseEntry) {
	for _, e := range entries {
		if e.key.Bit(depth) {
			right = append(right, e)
		} else {
			left = append(left, e)
		}
	}
	return left, right
}

// subtreeHash computes the Merkle root of entries as though they sit in a
// full-depth tree whose root is at depth `depth`.
func subtreeHash(entries []sparseEntry, depth int) Hash {
	switch len(entries) {
	case 0:
		return EmptyHash()
	case 1:
		return foldSingleLeaf(entries[0], depth)
	default:
		left, right := partitionEntries(entries, depth)
		return hashSparseInternal(subtreeHash(left, depth+1), subtreeHash(right, depth+1))
	}
}

// foldSingleLeaf computes the subtree root for exactly one leaf, folding the
// leaf hash up through the empty siblings from depth 255 to `fromDepth`.
func foldSingleLeaf(e sparseEntry, fromDepth int) Hash {
	h := hashSparseLeaf(e.key, Sum256(e.value))
	for d := keyBits - 1; d >= fromDepth; d-- {
		if e.key.Bit(d) {
			h = hashSparseInternal(EmptyHash(), h)
		} else {
			h = hashSparseInternal(h, EmptyHash())
		}
	}
	return h
}

// SparseLeaf describes the leaf found at a proof's key position.
type SparseLeaf struct {
	Key       Hash
	ValueHash Hash
}

// SparseProof is an inclusion or non-inclusion proof for one key.
type SparseProof struct {
	// Siblings is bottom-up: Siblings[0] is adjacent to the leaf (bit 255),
	// Siblings[len-1] is adjacent to the root (bit 0).
	Siblings []Hash
	Leaf     *SparseLeaf // nil for non-inclusion
}

// Depth returns the number of siblings in the proof (always 256 by
// construction, kept for parity with the reference implementation's API).
func (p *SparseProof) Depth() int {
	return len(p.Siblings)
}

// GetProof returns the inclusion (Leaf != nil) or non-inclusion (Leaf == nil)
// proof for key.
func (t *Sparse) GetProof(key Hash) *SparseProof {
	topDown, leaf := proofRec(t.entrySlice(), 0, key)
	siblings := make([]Hash, len(topDown))
	for i, h := range topDown {
		siblings[len(topDown)-1-i] = h
	}
	return &SparseProof{Siblings: siblings, Leaf: leaf}
}

func proofRec(entries []sparseEntry, depth int, key Hash) (topDown []Hash, leaf *SparseLeaf) {
	if depth == keyBits {
		for _, e := range entries {
			if e.key == key {
				return nil, &SparseLeaf{Key: e.key, ValueHash: Sum256(e.value)}
			}
		}
		return nil, nil
	}
	left, right := partitionEntries(entries, depth)
	if key.Bit(depth) {
		sibling := subtreeHash(left, depth+1)
		rest, l := proofRec(right, depth+1, key)
		return append([]Hash{sibling}, rest...), l
	}
	sibling := subtreeHash(right, depth+1)
	rest, l := proofRec(left, depth+1, key)
	return append([]Hash{sibling}, rest...), l
}

// computeRootFromLeaf recomputes the root from a leaf hash and a bottom-up
// sibling list, walking key bits MSB-first as spec.md §4.3 requires. An
// empty subtree hashes to EmptyHash at every level, so two empty halves
// combine to EmptyHash rather than to a hash of two empties.
func computeRootFromLeaf(leafHash Hash, key Hash, siblings []Hash) Hash {
	current := leafHash
	for i, sibling := range siblings {
		if current == EmptyHash() && sibling == EmptyHash() {
			continue
		}
		bitIndex := keyBits - 1 - i
		if key.Bit(bitIndex) {
			current = hashSparseInternal(sibling, current)
		} else {
			current = hashSparseInternal(current, sibling)
		}
	}
	return current
}

// VerifyInclusion reports whether (key, value) is committed under root.
func (p *SparseProof) VerifyInclusion(root Hash, key Hash, value []byte) error {
	if p.Leaf == nil {
		return fmt.Errorf("merkle: inclusion proof has no leaf")
	}
	if p.Leaf.Key != key {
		return fmt.Errorf("merkle: leaf key mismatch")
	}
	valueHash := Sum256(value)
	if p.Leaf.ValueHash != valueHash {
		return fmt.Errorf("merkle: value hash mismatch")
	}
	if len(p.Siblings) != keyBits {
		return fmt.Errorf("merkle: malformed proof depth %d", len(p.Siblings))
	}
	leafHash := hashSparseLeaf(key, valueHash)
	computed := computeRootFromLeaf(leafHash, key, p.Siblings)
	if computed != root {
		return fmt.Errorf("merkle: root mismatch: expected %s, computed %s", root, computed)
	}
	return nil
}

// VerifyNonInclusion reports whether key is absent from root.
func (p *SparseProof) VerifyNonInclusion(root Hash, key Hash) error {
	if p.Leaf != nil {
		return fmt.Errorf("merkle: key is present, cannot prove non-inclusion")
	}
	if len(p.Siblings) != keyBits {
		return fmt.Errorf("merkle: malformed proof depth %d", len(p.Siblings))
	}
	computed := computeRootFromLeaf(EmptyHash(), key, p.Siblings)
	if computed != root {
		return fmt.Errorf("merkle: root mismatch: expected %s, computed %s", root, computed)
	}
	return nil
}
