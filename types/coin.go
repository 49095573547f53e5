// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "github.com/luxfi/anchor/merkle"

// Coin is a value-bearing state object with exclusive ownership, held in a
// subnet's sparse Merkle tree.
type Coin struct {
	ID        ObjectID
	Owner     string
	Balance   uint64
	CoinType  string
	SubnetID  SubnetID
	Version   uint64
	CreatedAt uint64
	UpdatedAt uint64
}

// CoinObjectID computes the bit-exact coin object id from spec.md §6:
// SHA256("COIN" || owner || subnet_id_32).
func CoinObjectID(owner string, subnet SubnetID) ObjectID {
	var buf []byte
	buf = append(buf, []byte("COIN")...)
	buf = append(buf, []byte(owner)...)
	buf = append(buf, subnet[:]...)
	return IDFromHash(merkle.Sum256(buf))
}

// NewCoin constructs a coin object and derives its id.
func NewCoin(owner string, balance uint64, coinType string, subnet SubnetID, now uint64) *Coin {
	return &Coin{
		ID:        CoinObjectID(owner, subnet),
		Owner:     owner,
		Balance:   balance,
		CoinType:  coinType,
		SubnetID:  subnet,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
