// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import "fmt"

// Binary is an ordered binary Merkle tree over a list of leaf data, used to
// commit the event list folded into a ConsensusFrame.
type Binary struct {
	levels [][]Hash // levels[0] = leaf hashes, levels[len-1] = {root}
}

// BuildBinary constructs a binary Merkle tree over leaves in order.
// An empty input yields a tree whose root is HashLeaf(nil).
func BuildBinary(leaves [][]byte) *Binary {
	level := make([]Hash, len(leaves))
	for i, l := range leaves {
		level[i] = HashLeaf(l)
	}
	if len(level) == 0 {
		level = []Hash{HashLeaf(nil)}
	}

	levels := [][]Hash{level}
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, HashInternal(level[i], level[i+1]))
			} else {
				// Odd node is paired with itself.
				next = append(next, HashInternal(level[i], level[i]))
			}
		}
		levels = append(levels, next)
		level = next
	}
	return &Binary{levels: levels}
}

// Root returns the tree's root hash.
func (b *Binary) Root() Hash {
	top := b.levels[len(b.levels)-1]
	return top[0]
}

// Len returns the number of leaves committed; an empty input counts as one
// leaf, the HashLeaf(nil) placeholder.
func (b *Binary) Len() int {
	return len(b.levels[0])
}

// BinaryProof is an inclusion proof for one leaf of a Binary tree.
type BinaryProof struct {
	LeafIndex int
	Siblings  []Hash // bottom-up
}

// GetProof builds an inclusion proof for the leaf at index.
func (b *Binary) GetProof(index int) (*BinaryProof, error) {
	if index < 0 || index >= len(b.levels[0]) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range", index)
	}
	proof := &BinaryProof{LeafIndex: index}
	idx := index
	for level := 0; level < len(b.levels)-1; level++ {
		nodes := b.levels[level]
		var siblingIdx int
		if idx%2 == 0 {
			siblingIdx = idx + 1
			if siblingIdx >= len(nodes) {
				siblingIdx = idx
			}
		} else {
			siblingIdx = idx - 1
		}
		proof.Siblings = append(proof.Siblings, nodes[siblingIdx])
		idx /= 2
	}
	return proof, nil
}

// Verify recomputes the root from leaf data and the proof, comparing
// against root.
func (p *BinaryProof) Verify(root Hash, leaf []byte) bool {
	current := HashLeaf(leaf)
	idx := p.LeafIndex
	for _, sibling := range p.Siblings {
		if idx%2 == 0 {
			current = HashInternal(current, sibling)
		} else {
			current = HashInternal(sibling, current)
		}
		idx /= 2
	}
	return current == root
}
