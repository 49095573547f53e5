// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildBinaryEmptyRoot(t *testing.T) {
	r := require.New(t)
	tree := BuildBinary(nil)
	r.Equal(HashLeaf(nil), tree.Root())
}

func TestBuildBinaryDeterministic(t *testing.T) {
	r := require.New(t)
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	t1 := BuildBinary(leaves)
	t2 := BuildBinary(leaves)
	r.Equal(t1.Root(), t2.Root())
}

func TestBuildBinaryChangesWithOrder(t *testing.T) {
	r := require.New(t)
	t1 := BuildBinary([][]byte{[]byte("a"), []byte("b")})
	t2 := BuildBinary([][]byte{[]byte("b"), []byte("a")})
	r.NotEqual(t1.Root(), t2.Root())
}

func TestBinaryProofVerifiesEachLeaf(t *testing.T) {
	r := require.New(t)
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")}
	tree := BuildBinary(leaves)
	for i, leaf := range leaves {
		proof, err := tree.GetProof(i)
		r.NoError(err)
		r.True(proof.Verify(tree.Root(), leaf))
	}
}

func TestBinaryProofRejectsWrongLeaf(t *testing.T) {
	r := require.New(t)
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	tree := BuildBinary(leaves)
	proof, err := tree.GetProof(0)
	r.NoError(err)
	r.False(proof.Verify(tree.Root(), []byte("not-a")))
}

func TestBinaryGetProofOutOfRange(t *testing.T) {
	r := require.New(t)
	tree := BuildBinary([][]byte{[]byte("a")})
	_, err := tree.GetProof(5)
	r.Error(err)
}
