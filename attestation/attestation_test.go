// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package attestation

import (
	"testing"
	"time"

	"github.com/luxfi/anchor/types"
	"github.com/stretchr/testify/require"
)

func TestMockAttestationAcceptedWhenAllowed(t *testing.T) {
	v := NewAllowlistVerifier(nil, true)
	expected := ExpectedUserData(types.SubnetID{1}, [32]byte{2}, [32]byte{3}, [32]byte{4})
	a := NewMock([32]byte{}, expected, 1000)

	verified, err := v.Verify(a, expected)
	require.NoError(t, err)
	require.Equal(t, Mock, verified.Type)
}

func TestMockAttestationRejectedWhenDisallowed(t *testing.T) {
	v := NewAllowlistVerifier(nil, false)
	expected := ExpectedUserData(types.SubnetID{1}, [32]byte{2}, [32]byte{3}, [32]byte{4})
	a := NewMock([32]byte{}, expected, 1000)

	_, err := v.Verify(a, expected)
	require.ErrorIs(t, err, types.ErrUnsupportedMockMode)
}

func TestNitroRequiresAllowlistedMeasurement(t *testing.T) {
	measurement := [32]byte{7}
	v := NewAllowlistVerifier([][32]byte{measurement}, false)
	expected := ExpectedUserData(types.SubnetID{1}, [32]byte{2}, [32]byte{3}, [32]byte{4})

	good := Attestation{Type: AwsNitro, Measurement: measurement, UserData: expected, Timestamp: uint64(time.Now().Unix())}
	_, err := v.Verify(good, expected)
	require.NoError(t, err)

	bad := Attestation{Type: AwsNitro, Measurement: [32]byte{9}, UserData: expected}
	_, err = v.Verify(bad, expected)
	require.ErrorIs(t, err, types.ErrUnknownMeasurement)
}

func TestUserDataMismatchRejected(t *testing.T) {
	measurement := [32]byte{7}
	v := NewAllowlistVerifier([][32]byte{measurement}, false)
	expected := ExpectedUserData(types.SubnetID{1}, [32]byte{2}, [32]byte{3}, [32]byte{4})
	a := Attestation{Type: AwsNitro, Measurement: measurement, UserData: [32]byte{99}, Timestamp: uint64(time.Now().Unix())}

	_, err := v.Verify(a, expected)
	require.ErrorIs(t, err, types.ErrUserDataMismatch)
}

func TestUnsupportedTypesRejected(t *testing.T) {
	v := NewAllowlistVerifier(nil, true)
	for _, typ := range []Type{IntelSgx, AmdSev} {
		_, err := v.Verify(Attestation{Type: typ}, [32]byte{})
		require.ErrorIs(t, err, types.ErrUnsupportedAttestationType)
	}
}

func TestAttestationHashIsDeterministic(t *testing.T) {
	a := NewMock([32]byte{1}, [32]byte{2}, 1000)
	require.Equal(t, a.Hash(), a.Hash())

	b := NewMock([32]byte{1}, [32]byte{2}, 1001)
	require.NotEqual(t, a.Hash(), b.Hash())
}
