// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package kvstore implements the store traits on top of
// github.com/luxfi/database, for nodes that persist across restarts.
package kvstore

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/anchor/codec"
	"github.com/luxfi/anchor/merkle"
	"github.com/luxfi/anchor/store"
	"github.com/luxfi/anchor/types"
	"github.com/luxfi/database"
)

var (
	eventPrefix        = []byte("ev/")
	eventStatusPrefix  = []byte("ev-status/")
	eventCreatorPrefix = []byte("ev-creator/")
	eventDepthPrefix   = []byte("ev-depth/")

	anchorByIDPrefix    = []byte("an/")
	anchorByDepthPrefix = []byte("an-depth/")

	cfPendingPrefix   = []byte("cf-pending/")
	cfFinalizedPrefix = []byte("cf-final/")

	leafPrefix       = []byte("smt-leaf/")
	subnetRootPrefix = []byte("smt-subnet-root/")
	globalRootPrefix = []byte("smt-global-root/")
	lastAnchorPrefix = []byte("smt-last-anchor/")
	subnetRegPrefix  = []byte("smt-subnet-reg/")
)

func depthKey(prefix []byte, depth uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], depth)
	return append(append([]byte{}, prefix...), buf[:]...)
}

// wrapStorageErr folds a raw database.Database error into
// types.ErrStorageFailed, tagged with op, so callers can test for a storage
// failure with errors.Is regardless of which underlying store is wired in.
func wrapStorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", types.ErrStorageFailed, op, err)
}

// EventStore is a database.Database-backed EventStoreBackend. Status,
// creator, and depth indexes are maintained as secondary key sets so
// QueryBy* can avoid a full scan in the common case of a small working set.
type EventStore struct {
	db database.Database
}

// NewEventStore wraps db as an EventStoreBackend.
func NewEventStore(db database.Database) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Put(e *types.Event) error {
	data, err := codec.Codec.Marshal(codec.CurrentVersion, e)
	if err != nil {
		return err
	}
	if err := s.db.Put(append(append([]byte{}, eventPrefix...), e.ID[:]...), data); err != nil {
		return wrapStorageErr("put event", err)
	}
	if err := s.db.Put(indexKey(eventStatusPrefix, int(e.Status), e.ID), []byte{1}); err != nil {
		return wrapStorageErr("put event status index", err)
	}
	if err := s.db.Put(indexKey(eventCreatorPrefix, e.Creator, e.ID), []byte{1}); err != nil {
		return wrapStorageErr("put event creator index", err)
	}
	if err := s.db.Put(depthIndexKey(eventDepthPrefix, e.Depth(), e.ID), []byte{1}); err != nil {
		return wrapStorageErr("put event depth index", err)
	}
	return nil
}

func (s *EventStore) Get(id types.EventID) (*types.Event, bool, error) {
	data, err := s.db.Get(append(append([]byte{}, eventPrefix...), id[:]...))
	if err == database.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapStorageErr("get event", err)
	}
	var e types.Event
	if _, err := codec.Codec.Unmarshal(data, &e); err != nil {
		return nil, false, err
	}
	return &e, true, nil
}

func (s *EventStore) GetMany(ids []types.EventID) ([]*types.Event, error) {
	out := make([]*types.Event, 0, len(ids))
	for _, id := range ids {
		e, ok, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *EventStore) Delete(id types.EventID) error {
	e, ok, err := s.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := s.db.Delete(indexKey(eventStatusPrefix, int(e.Status), e.ID)); err != nil {
		return wrapStorageErr("delete event status index", err)
	}
	if err := s.db.Delete(indexKey(eventCreatorPrefix, e.Creator, e.ID)); err != nil {
		return wrapStorageErr("delete event creator index", err)
	}
	if err := s.db.Delete(depthIndexKey(eventDepthPrefix, e.Depth(), e.ID)); err != nil {
		return wrapStorageErr("delete event depth index", err)
	}
	if err := s.db.Delete(append(append([]byte{}, eventPrefix...), id[:]...)); err != nil {
		return wrapStorageErr("delete event", err)
	}
	return nil
}

func (s *EventStore) queryIndex(prefix []byte) ([]*types.Event, error) {
	iter := s.db.NewIteratorWithPrefix(prefix)
	defer iter.Release()

	var out []*types.Event
	for iter.Next() {
		id := idFromIndexKey(iter.Key())
		e, ok, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, wrapStorageErr("query event index", iter.Error())
}

func (s *EventStore) QueryByStatus(status types.EventStatus) ([]*types.Event, error) {
	return s.queryIndex(indexKeyPrefix(eventStatusPrefix, int(status)))
}

func (s *EventStore) QueryByCreator(creator string) ([]*types.Event, error) {
	return s.queryIndex(indexKeyPrefix(eventCreatorPrefix, creator))
}

func (s *EventStore) QueryByDepth(depth uint64) ([]*types.Event, error) {
	return s.queryIndex(depthKey(eventDepthPrefix, depth))
}

func (s *EventStore) Count() (int, error) {
	iter := s.db.NewIteratorWithPrefix(eventPrefix)
	defer iter.Release()
	n := 0
	for iter.Next() {
		n++
	}
	return n, wrapStorageErr("count events", iter.Error())
}

var _ store.EventStoreBackend = (*EventStore)(nil)

func indexKeyPrefix(prefix []byte, field interface{}) []byte {
	return append(append([]byte{}, prefix...), []byte(fmt.Sprintf("%v/", field))...)
}

func indexKey(prefix []byte, field interface{}, id types.EventID) []byte {
	return append(indexKeyPrefix(prefix, field), id[:]...)
}

func depthIndexKey(prefix []byte, depth uint64, id types.EventID) []byte {
	return append(depthKey(prefix, depth), id[:]...)
}

func idFromIndexKey(key []byte) types.EventID {
	var id types.EventID
	copy(id[:], key[len(key)-len(id):])
	return id
}

// AnchorStore is a database.Database-backed AnchorStoreBackend.
type AnchorStore struct {
	db database.Database
}

// NewAnchorStore wraps db as an AnchorStoreBackend.
func NewAnchorStore(db database.Database) *AnchorStore {
	return &AnchorStore{db: db}
}

func (s *AnchorStore) Put(a *types.Anchor) error {
	data, err := codec.Codec.Marshal(codec.CurrentVersion, a)
	if err != nil {
		return err
	}
	if err := s.db.Put(append(append([]byte{}, anchorByIDPrefix...), a.ID[:]...), data); err != nil {
		return wrapStorageErr("put anchor", err)
	}
	if err := s.db.Put(depthKey(anchorByDepthPrefix, a.Depth), a.ID[:]); err != nil {
		return wrapStorageErr("put anchor depth index", err)
	}
	return nil
}

func (s *AnchorStore) Get(id types.AnchorID) (*types.Anchor, bool, error) {
	data, err := s.db.Get(append(append([]byte{}, anchorByIDPrefix...), id[:]...))
	if err == database.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapStorageErr("get anchor", err)
	}
	var a types.Anchor
	if _, err := codec.Codec.Unmarshal(data, &a); err != nil {
		return nil, false, err
	}
	return &a, true, nil
}

func (s *AnchorStore) GetByDepth(depth uint64) (*types.Anchor, bool, error) {
	idBytes, err := s.db.Get(depthKey(anchorByDepthPrefix, depth))
	if err == database.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapStorageErr("get anchor by depth", err)
	}
	var id types.AnchorID
	copy(id[:], idBytes)
	return s.Get(id)
}

func (s *AnchorStore) GetChain(fromDepth, toDepth uint64) ([]*types.Anchor, error) {
	var out []*types.Anchor
	for d := fromDepth; d <= toDepth; d++ {
		a, ok, err := s.GetByDepth(d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *AnchorStore) Count() (int, error) {
	iter := s.db.NewIteratorWithPrefix(anchorByIDPrefix)
	defer iter.Release()
	n := 0
	for iter.Next() {
		n++
	}
	return n, wrapStorageErr("count anchors", iter.Error())
}

var _ store.AnchorStoreBackend = (*AnchorStore)(nil)

// CFStore is a database.Database-backed CFStoreBackend.
type CFStore struct {
	db database.Database
}

// NewCFStore wraps db as a CFStoreBackend.
func NewCFStore(db database.Database) *CFStore {
	return &CFStore{db: db}
}

func (s *CFStore) put(prefix []byte, cf *types.ConsensusFrame) error {
	data, err := codec.Codec.Marshal(codec.CurrentVersion, cf)
	if err != nil {
		return err
	}
	if err := s.db.Put(append(append([]byte{}, prefix...), cf.ID[:]...), data); err != nil {
		return wrapStorageErr("put CF", err)
	}
	return nil
}

func (s *CFStore) get(prefix []byte, id types.CFID) (*types.ConsensusFrame, bool, error) {
	data, err := s.db.Get(append(append([]byte{}, prefix...), id[:]...))
	if err == database.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapStorageErr("get CF", err)
	}
	var cf types.ConsensusFrame
	if _, err := codec.Codec.Unmarshal(data, &cf); err != nil {
		return nil, false, err
	}
	return &cf, true, nil
}

func (s *CFStore) PutPending(cf *types.ConsensusFrame) error { return s.put(cfPendingPrefix, cf) }

func (s *CFStore) GetPending(id types.CFID) (*types.ConsensusFrame, bool, error) {
	return s.get(cfPendingPrefix, id)
}

func (s *CFStore) PutFinalized(cf *types.ConsensusFrame) error { return s.put(cfFinalizedPrefix, cf) }

func (s *CFStore) GetFinalized(id types.CFID) (*types.ConsensusFrame, bool, error) {
	return s.get(cfFinalizedPrefix, id)
}

func (s *CFStore) MarkFinalized(id types.CFID) error {
	cf, ok, err := s.GetPending(id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := s.db.Delete(append(append([]byte{}, cfPendingPrefix...), id[:]...)); err != nil {
		return wrapStorageErr("delete pending CF", err)
	}
	return s.PutFinalized(cf)
}

var _ store.CFStoreBackend = (*CFStore)(nil)

// batch stages writes in memory; Store.CommitBatch replays them through a
// single database.Batch so the underlying store applies them atomically.
type batch struct {
	puts    map[string][]byte
	deletes map[string]struct{}
}

func newBatch() *batch {
	return &batch{puts: make(map[string][]byte), deletes: make(map[string]struct{})}
}

func (b *batch) set(key []byte, value []byte) {
	k := string(key)
	delete(b.deletes, k)
	b.puts[k] = value
}

func (b *batch) unset(key []byte) {
	k := string(key)
	delete(b.puts, k)
	b.deletes[k] = struct{}{}
}

func (b *batch) PutLeaves(subnet types.SubnetID, leaves map[types.ObjectID][]byte) {
	for objID, v := range leaves {
		b.set(leafKey(subnet, objID), v)
	}
}

func (b *batch) DeleteLeaves(subnet types.SubnetID, objectIDs []types.ObjectID) {
	for _, objID := range objectIDs {
		b.unset(leafKey(subnet, objID))
	}
}

func (b *batch) RegisterSubnet(subnet types.SubnetID) {
	b.set(append(append([]byte{}, subnetRegPrefix...), subnet[:]...), []byte{1})
}

func (b *batch) SetLastAnchor(subnet types.SubnetID, anchorID types.AnchorID) {
	b.set(append(append([]byte{}, lastAnchorPrefix...), subnet[:]...), anchorID[:])
}

func (b *batch) PutSubnetRoot(subnet types.SubnetID, anchorID types.AnchorID, root merkle.Hash) {
	b.set(append(append([]byte{}, subnetRootPrefix...), subnet[:]...), root[:])
}

func (b *batch) PutGlobalRoot(anchorID types.AnchorID, root merkle.Hash) {
	b.set(append(append([]byte{}, globalRootPrefix...), anchorID[:]...), root[:])
}

func leafKey(subnet types.SubnetID, objID types.ObjectID) []byte {
	k := append(append([]byte{}, leafPrefix...), subnet[:]...)
	return append(k, objID[:]...)
}

// Store is a database.Database-backed B4Store: CommitBatch writes every
// staged key through one database.Batch.Write so the batch either all
// lands or none does, per the underlying store's write-batch guarantee.
type Store struct {
	db database.Database
}

// New wraps db as a B4Store.
func New(db database.Database) *Store {
	return &Store{db: db}
}

func (s *Store) BeginBatch() store.Batch {
	return newBatch()
}

func (s *Store) CommitBatch(b store.Batch) error {
	bb, ok := b.(*batch)
	if !ok {
		return types.ErrCommitFailed
	}

	dbBatch := s.db.NewBatch()
	for k, v := range bb.puts {
		if err := dbBatch.Put([]byte(k), v); err != nil {
			return wrapStorageErr("stage batch put", err)
		}
	}
	for k := range bb.deletes {
		if err := dbBatch.Delete([]byte(k)); err != nil {
			return wrapStorageErr("stage batch delete", err)
		}
	}
	return wrapStorageErr("commit batch", dbBatch.Write())
}

// SubnetRoot reads the last-committed root for subnet, if any.
func (s *Store) SubnetRoot(subnet types.SubnetID) (merkle.Hash, bool, error) {
	data, err := s.db.Get(append(append([]byte{}, subnetRootPrefix...), subnet[:]...))
	if err == database.ErrNotFound {
		return merkle.Hash{}, false, nil
	}
	if err != nil {
		return merkle.Hash{}, false, wrapStorageErr("get subnet root", err)
	}
	var h merkle.Hash
	copy(h[:], data)
	return h, true, nil
}

// RegisteredSubnets scans the subnet registry index, used to reload the
// state manager's cache on restart (spec.md §9).
func (s *Store) RegisteredSubnets() ([]types.SubnetID, error) {
	iter := s.db.NewIteratorWithPrefix(subnetRegPrefix)
	defer iter.Release()

	var out []types.SubnetID
	for iter.Next() {
		var id types.SubnetID
		key := iter.Key()
		copy(id[:], key[len(key)-len(id):])
		out = append(out, id)
	}
	return out, wrapStorageErr("scan registered subnets", iter.Error())
}

var _ store.B4Store = (*Store)(nil)
