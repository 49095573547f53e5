// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package attestation verifies TEE attestation documents, binding enclave
// output to a known enclave measurement and to the task's input/output
// digest.
package attestation

import (
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/luxfi/anchor/types"
)

// Type identifies the attestation scheme a document was produced under.
type Type int

const (
	Mock Type = iota
	AwsNitro
	IntelSgx
	AmdSev
)

func (t Type) String() string {
	switch t {
	case Mock:
		return "mock"
	case AwsNitro:
		return "aws_nitro"
	case IntelSgx:
		return "intel_sgx"
	case AmdSev:
		return "amd_sev"
	default:
		return "unknown"
	}
}

// Attestation is the evidence an enclave produces binding its measurement
// to the digest of what it computed.
type Attestation struct {
	Type        Type
	Measurement [32]byte
	UserData    [32]byte
	Document    []byte
	Timestamp   uint64
	SolverID    string
}

// NewMock builds a Mock attestation for testing, with userData left to the
// caller to set via the STF binding below.
func NewMock(measurement, userData [32]byte, timestamp uint64) Attestation {
	return Attestation{Type: Mock, Measurement: measurement, UserData: userData, Timestamp: timestamp}
}

// Hash computes SHA256(type || measurement || user_data || timestamp_le),
// the attestation's own content-addressed digest.
func (a Attestation) Hash() [32]byte {
	h := sha256.New()
	h.Write([]byte{byte(a.Type)})
	h.Write(a.Measurement[:])
	h.Write(a.UserData[:])
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], a.Timestamp)
	h.Write(ts[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ExpectedUserData recomputes the user_data binding hash from the STF's
// input/output digests per spec.md §4.11 step 3:
// hash(subnet_id, pre_state_root, post_state_root, state_diff_commitment).
func ExpectedUserData(subnet types.SubnetID, preStateRoot, postStateRoot, stateDiffCommitment [32]byte) [32]byte {
	h := sha256.New()
	h.Write(subnet[:])
	h.Write(preStateRoot[:])
	h.Write(postStateRoot[:])
	h.Write(stateDiffCommitment[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifiedAttestation is the output of a successful Verify call.
type VerifiedAttestation struct {
	Measurement [32]byte
	UserData    [32]byte
	Type        Type
	VerifiedAt  uint64
}

// Verifier checks an attestation's type, measurement, and user_data
// binding.
type Verifier interface {
	Verify(a Attestation, expectedUserData [32]byte) (VerifiedAttestation, error)
	IsMeasurementAllowed(measurement [32]byte) bool
}

// AllowlistVerifier accepts AwsNitro attestations whose measurement is in
// Allowed, and Mock attestations only if AllowMock is set. IntelSgx and
// AmdSev are reserved: no platform-specific parser is wired yet. MaxAge
// bounds how far a real (non-Mock) attestation's timestamp may drift from
// wall-clock time, in either direction, before it is rejected as expired;
// zero disables the check. Mock attestations are exempt since tests and
// local dev runs construct them with arbitrary timestamps.
type AllowlistVerifier struct {
	Allowed   map[[32]byte]struct{}
	AllowMock bool
	MaxAge    time.Duration

	now func() time.Time
}

// defaultAttestationMaxAge bounds a real attestation's age before Verify
// rejects it as expired.
const defaultAttestationMaxAge = 5 * time.Minute

// NewAllowlistVerifier builds a verifier accepting exactly the given
// measurements, with the default freshness window.
func NewAllowlistVerifier(measurements [][32]byte, allowMock bool) *AllowlistVerifier {
	v := &AllowlistVerifier{
		Allowed:   make(map[[32]byte]struct{}, len(measurements)),
		AllowMock: allowMock,
		MaxAge:    defaultAttestationMaxAge,
		now:       time.Now,
	}
	for _, m := range measurements {
		v.Allowed[m] = struct{}{}
	}
	return v
}

// IsMeasurementAllowed reports whether measurement is on the allowlist.
func (v *AllowlistVerifier) IsMeasurementAllowed(measurement [32]byte) bool {
	_, ok := v.Allowed[measurement]
	return ok
}

// Verify implements the dispatch in spec.md §4.11.
func (v *AllowlistVerifier) Verify(a Attestation, expectedUserData [32]byte) (VerifiedAttestation, error) {
	switch a.Type {
	case Mock:
		if !v.AllowMock {
			return VerifiedAttestation{}, types.ErrUnsupportedMockMode
		}
	case AwsNitro:
		if !v.IsMeasurementAllowed(a.Measurement) {
			return VerifiedAttestation{}, types.ErrUnknownMeasurement
		}
	case IntelSgx, AmdSev:
		return VerifiedAttestation{}, types.ErrUnsupportedAttestationType
	default:
		return VerifiedAttestation{}, types.ErrUnsupportedAttestationType
	}

	if a.Type != Mock && v.MaxAge > 0 {
		age := v.now().Sub(time.Unix(int64(a.Timestamp), 0))
		if age > v.MaxAge || age < -v.MaxAge {
			return VerifiedAttestation{}, types.ErrAttestationExpired
		}
	}

	if a.UserData != expectedUserData {
		return VerifiedAttestation{}, types.ErrUserDataMismatch
	}

	return VerifiedAttestation{
		Measurement: a.Measurement,
		UserData:    a.UserData,
		Type:        a.Type,
		VerifiedAt:  uint64(time.Now().Unix()),
	}, nil
}

var _ Verifier = (*AllowlistVerifier)(nil)
