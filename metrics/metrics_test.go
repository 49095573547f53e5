// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestCFFinalizeObservesLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.CFProposed("cf-1")
	m.CFFinalized("cf-1")

	_, ok := m.startedCF["cf-1"]
	require.False(t, ok)
}

func TestRoundAdvancedTracksLeaderChanges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RoundAdvanced(1, false)
	m.RoundAdvanced(2, true)

	require.Equal(t, float64(1), testutil.ToFloat64(m.leaderChanges))
	require.Equal(t, float64(2), testutil.ToFloat64(m.quorumRound))
}
