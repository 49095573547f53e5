// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package task

import (
	"testing"
	"time"

	"github.com/luxfi/anchor/merkle"
	"github.com/luxfi/anchor/task/reservation"
	"github.com/luxfi/anchor/types"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	coins map[string][]types.Coin // owner -> coins
	tree  *merkle.Sparse
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{coins: make(map[string][]types.Coin), tree: merkle.NewSparse()}
}

func (f *fakeProvider) addCoin(c types.Coin, value []byte) {
	f.coins[c.Owner] = append(f.coins[c.Owner], c)
	f.tree.Insert(types.HashFromID(c.ID), value)
}

func (f *fakeProvider) CoinsByOwner(owner, coinType string, subnet types.SubnetID) []types.Coin {
	var out []types.Coin
	for _, c := range f.coins[owner] {
		if c.CoinType == coinType && c.SubnetID == subnet {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeProvider) GetInclusionProof(subnet types.SubnetID, objectID types.ObjectID) *merkle.SparseProof {
	return f.tree.GetProof(types.HashFromID(objectID))
}

func (f *fakeProvider) LastModifier(objectID types.ObjectID) (types.EventID, bool) {
	return types.EventID{}, false
}

func (f *fakeProvider) SubnetRoot(subnet types.SubnetID) merkle.Hash {
	return f.tree.Root()
}

func TestPrepareTransferSelectsSmallestSufficientCoin(t *testing.T) {
	fp := newFakeProvider()
	subnet := types.SubnetID{1}
	small := types.NewCoin("alice", 1000, "LUX", subnet, 1)
	big := types.NewCoin("alice", 100000, "LUX", subnet, 1)
	fp.addCoin(*small, []byte("v1"))
	fp.addCoin(*big, []byte("v2"))

	p := New(fp, reservation.New(time.Minute))
	st, err := p.PrepareTransfer("alice", "LUX", subnet, 5000, 21000, types.GasBudget{}, 1000)
	require.NoError(t, err)
	require.Equal(t, big.ID, st.ResolvedInputs.Objects[0].ObjectID)
}

func TestPrepareTransferInsufficientBalance(t *testing.T) {
	fp := newFakeProvider()
	subnet := types.SubnetID{1}
	coin := types.NewCoin("alice", 1000, "LUX", subnet, 1)
	fp.addCoin(*coin, []byte("v1"))

	p := New(fp, reservation.New(time.Minute))
	_, err := p.PrepareTransfer("alice", "LUX", subnet, 500, 21000, types.GasBudget{}, 1000)
	var perr *PrepareError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, ErrInsufficientBalance, perr.Kind)
}

func TestPrepareTransferNoCoinsFound(t *testing.T) {
	fp := newFakeProvider()
	p := New(fp, reservation.New(time.Minute))
	_, err := p.PrepareTransfer("bob", "LUX", types.SubnetID{1}, 100, 1, types.GasBudget{}, 1000)
	var perr *PrepareError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, ErrNoCoinsFound, perr.Kind)
}

func TestPrepareTransferReservedCoinSkipped(t *testing.T) {
	fp := newFakeProvider()
	subnet := types.SubnetID{1}
	coin := types.NewCoin("alice", 100000, "LUX", subnet, 1)
	fp.addCoin(*coin, []byte("v1"))

	reg := reservation.New(time.Minute)
	require.True(t, reg.Acquire(coin.ID))

	p := New(fp, reg)
	_, err := p.PrepareTransfer("alice", "LUX", subnet, 5000, 21000, types.GasBudget{}, 1000)
	var perr *PrepareError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, ErrAllCoinsReserved, perr.Kind)
}

func TestPrepareTransferReadSetProofVerifies(t *testing.T) {
	fp := newFakeProvider()
	subnet := types.SubnetID{1}
	coin := types.NewCoin("alice", 100000, "LUX", subnet, 1)
	fp.addCoin(*coin, []byte("v1"))

	p := New(fp, reservation.New(time.Minute))
	st, err := p.PrepareTransfer("alice", "LUX", subnet, 5000, 21000, types.GasBudget{}, 1000)
	require.NoError(t, err)
	require.Len(t, st.ReadSet, 1)
	require.NotNil(t, st.ReadSet[0].Proof)
	require.Len(t, st.ReadSet[0].Proof.Siblings, 256)
}
