// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSparseEmptyRoot(t *testing.T) {
	r := require.New(t)
	tree := NewSparse()
	r.Equal(EmptyHash(), tree.Root())
}

func TestSparseInsertGetContains(t *testing.T) {
	r := require.New(t)
	tree := NewSparse()
	key := Sum256([]byte("key-1"))
	_, had := tree.Insert(key, []byte("value-1"))
	r.False(had)

	v, ok := tree.Get(key)
	r.True(ok)
	r.Equal([]byte("value-1"), v)
	r.True(tree.Contains(key))
}

func TestSparseDeterministicAcrossInsertOrder(t *testing.T) {
	r := require.New(t)
	keys := []Hash{Sum256([]byte("a")), Sum256([]byte("b")), Sum256([]byte("c"))}

	t1 := NewSparse()
	t1.Insert(keys[0], []byte("1"))
	t1.Insert(keys[1], []byte("2"))
	t1.Insert(keys[2], []byte("3"))

	t2 := NewSparse()
	t2.Insert(keys[2], []byte("3"))
	t2.Insert(keys[0], []byte("1"))
	t2.Insert(keys[1], []byte("2"))

	r.Equal(t1.Root(), t2.Root())
}

func TestSparseInsertThenRemoveRestoresRoot(t *testing.T) {
	r := require.New(t)
	tree := NewSparse()
	before := tree.Root()

	key := Sum256([]byte("transient"))
	tree.Insert(key, []byte("value"))
	r.NotEqual(before, tree.Root())

	_, had := tree.Remove(key)
	r.True(had)
	r.Equal(before, tree.Root())
}

func TestSparseVerifyInclusion(t *testing.T) {
	r := require.New(t)
	tree := NewSparse()
	keyA := Sum256([]byte("a"))
	keyB := Sum256([]byte("b"))
	tree.Insert(keyA, []byte("value-a"))
	tree.Insert(keyB, []byte("value-b"))

	root := tree.Root()
	proof := tree.GetProof(keyA)
	r.NotNil(proof.Leaf)
	r.NoError(proof.VerifyInclusion(root, keyA, []byte("value-a")))
	r.Error(proof.VerifyInclusion(root, keyA, []byte("wrong-value")))
}

func TestSparseVerifyNonInclusion(t *testing.T) {
	r := require.New(t)
	tree := NewSparse()
	keyA := Sum256([]byte("a"))
	tree.Insert(keyA, []byte("value-a"))

	absent := Sum256([]byte("absent"))
	proof := tree.GetProof(absent)
	r.Nil(proof.Leaf)
	r.NoError(proof.VerifyNonInclusion(tree.Root(), absent))
}

func TestSparseProofDepthIsFixed(t *testing.T) {
	r := require.New(t)
	tree := NewSparse()
	key := Sum256([]byte("k"))
	tree.Insert(key, []byte("v"))
	proof := tree.GetProof(key)
	r.Equal(keyBits, proof.Depth())
}

func TestSparseBatchInsert(t *testing.T) {
	r := require.New(t)
	tree := NewSparse()
	entries := map[Hash][]byte{
		Sum256([]byte("x")): []byte("1"),
		Sum256([]byte("y")): []byte("2"),
	}
	tree.BatchInsert(entries)
	r.Equal(2, tree.Len())
	for k, v := range entries {
		got, ok := tree.Get(k)
		r.True(ok)
		r.Equal(v, got)
	}
}
