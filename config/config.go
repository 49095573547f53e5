// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config aggregates the tunables every core component needs.
// Loading from environment, file, or genesis is out of scope (spec.md §1);
// this package defines only the struct and its defaults.
package config

import (
	"time"

	"github.com/luxfi/anchor/election"
	"github.com/luxfi/anchor/validator"
)

// FeeSchedule is the flat per-transfer economic model from spec.md §8.
type FeeSchedule struct {
	FlatTransferFee uint64
}

// Config aggregates node identity, consensus tuning, election strategy,
// attestation policy, and task-preparation tuning.
type Config struct {
	NodeID string

	VLCDeltaThreshold uint64
	MinEventsPerCF    int
	MaxEventsPerCF    int

	Fees FeeSchedule

	Election         validator.ElectionStrategy
	ReputationConfig election.ReputationConfig

	AttestationAllowMock     bool
	AttestationMeasurements  [][32]byte

	ReservationTTL time.Duration
}

// Default returns a config suitable for a single-node development setup:
// rotating election with contiguous_rounds=1, mock attestation allowed, a
// 30s reservation TTL.
func Default(nodeID string) Config {
	return Config{
		NodeID:            nodeID,
		VLCDeltaThreshold: 10,
		MinEventsPerCF:    1,
		MaxEventsPerCF:    500,
		Fees:              FeeSchedule{FlatTransferFee: 21000},
		Election:          validator.ElectionStrategy{Kind: validator.StrategyRotating, ContiguousRounds: 1},
		ReputationConfig:  election.DefaultReputationConfig(),
		AttestationAllowMock: true,
		ReservationTTL:     30 * time.Second,
	}
}
