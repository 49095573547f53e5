// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package kvstore

import (
	"bytes"
	"sort"
	"testing"

	"github.com/luxfi/anchor/merkle"
	"github.com/luxfi/anchor/types"
	"github.com/luxfi/anchor/vlc"
	"github.com/luxfi/database"
	"github.com/stretchr/testify/require"
)

// fakeDB is a minimal in-memory stand-in for database.Database, covering
// exactly the Get/Put/Delete/NewBatch/NewIteratorWithPrefix surface the
// store package relies on.
type fakeDB struct {
	m map[string][]byte
}

func newFakeDB() *fakeDB { return &fakeDB{m: make(map[string][]byte)} }

func (f *fakeDB) Get(key []byte) ([]byte, error) {
	v, ok := f.m[string(key)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return v, nil
}

func (f *fakeDB) Put(key, value []byte) error {
	f.m[string(key)] = value
	return nil
}

func (f *fakeDB) Delete(key []byte) error {
	delete(f.m, string(key))
	return nil
}

func (f *fakeDB) Has(key []byte) (bool, error) {
	_, ok := f.m[string(key)]
	return ok, nil
}

func (f *fakeDB) NewBatch() database.Batch {
	return &fakeBatch{db: f}
}

func (f *fakeDB) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	var keys []string
	for k := range f.m {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return &fakeIterator{db: f, keys: keys, idx: -1}
}

type fakeBatch struct {
	db      *fakeDB
	puts    map[string][]byte
	deletes map[string]struct{}
}

func (b *fakeBatch) Put(key, value []byte) error {
	if b.puts == nil {
		b.puts = make(map[string][]byte)
		b.deletes = make(map[string]struct{})
	}
	delete(b.deletes, string(key))
	b.puts[string(key)] = value
	return nil
}

func (b *fakeBatch) Delete(key []byte) error {
	if b.deletes == nil {
		b.puts = make(map[string][]byte)
		b.deletes = make(map[string]struct{})
	}
	delete(b.puts, string(key))
	b.deletes[string(key)] = struct{}{}
	return nil
}

func (b *fakeBatch) Write() error {
	for k, v := range b.puts {
		b.db.m[k] = v
	}
	for k := range b.deletes {
		delete(b.db.m, k)
	}
	return nil
}

type fakeIterator struct {
	db   *fakeDB
	keys []string
	idx  int
}

func (it *fakeIterator) Next() bool {
	it.idx++
	return it.idx < len(it.keys)
}

func (it *fakeIterator) Key() []byte   { return []byte(it.keys[it.idx]) }
func (it *fakeIterator) Value() []byte { return it.db.m[it.keys[it.idx]] }
func (it *fakeIterator) Error() error   { return nil }
func (it *fakeIterator) Release()       {}

var _ database.Database = (*fakeDB)(nil)

func TestKVEventStoreRoundTrip(t *testing.T) {
	db := newFakeDB()
	s := NewEventStore(db)

	e := types.NewEvent(types.TransferPayload{Sender: "a", Recipient: "b", Amount: 5}, nil, vlc.Snapshot{}, "a", 1)
	e.SetDepth(3)
	require.NoError(t, s.Put(e))

	got, ok, err := s.Get(e.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, e.ID, got.ID)
	require.Equal(t, uint64(3), got.Depth())
	require.Equal(t, e.Payload, got.Payload)

	byCreator, err := s.QueryByCreator("a")
	require.NoError(t, err)
	require.Len(t, byCreator, 1)

	byDepth, err := s.QueryByDepth(3)
	require.NoError(t, err)
	require.Len(t, byDepth, 1)

	count, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, s.Delete(e.ID))
	_, ok, err = s.Get(e.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVAnchorStoreRoundTrip(t *testing.T) {
	db := newFakeDB()
	s := NewAnchorStore(db)

	roots := types.MerkleRoots{PerSubnetRoots: map[types.SubnetID]merkle.Hash{}}
	a := types.NewAnchor(5, nil, vlc.Snapshot{}, roots, types.AnchorID{}, 100)
	require.NoError(t, s.Put(a))

	got, ok, err := s.GetByDepth(5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, a.ID, got.ID)

	chain, err := s.GetChain(0, 5)
	require.NoError(t, err)
	require.Len(t, chain, 1)
}

func TestKVCFStoreMarkFinalized(t *testing.T) {
	db := newFakeDB()
	s := NewCFStore(db)

	roots := types.MerkleRoots{PerSubnetRoots: map[types.SubnetID]merkle.Hash{}}
	a := types.NewAnchor(0, nil, vlc.Snapshot{}, roots, types.AnchorID{}, 1)
	cf := types.NewConsensusFrame(a, "validator-1")
	require.NoError(t, s.PutPending(cf))

	require.NoError(t, s.MarkFinalized(cf.ID))

	_, ok, err := s.GetPending(cf.ID)
	require.NoError(t, err)
	require.False(t, ok)

	got, ok, err := s.GetFinalized(cf.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cf.ID, got.ID)
}

func TestKVB4StoreCommitBatch(t *testing.T) {
	db := newFakeDB()
	s := New(db)
	subnet := types.SubnetID{1}
	obj := types.ObjectID{2}
	anchorID := types.AnchorID{3}

	b := s.BeginBatch()
	b.RegisterSubnet(subnet)
	b.PutLeaves(subnet, map[types.ObjectID][]byte{obj: []byte("v")})
	b.SetLastAnchor(subnet, anchorID)
	b.PutSubnetRoot(subnet, anchorID, merkle.EmptyHash())
	require.NoError(t, s.CommitBatch(b))

	subnets, err := s.RegisteredSubnets()
	require.NoError(t, err)
	require.Len(t, subnets, 1)

	root, ok, err := s.SubnetRoot(subnet)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, merkle.EmptyHash(), root)
}
