// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package task

import (
	"fmt"

	"github.com/luxfi/anchor/types"
)

// PrepareError is returned by Preparer.PrepareTransfer, mirroring the
// TaskPrepareError variants from task_preparer/mod.rs.
type PrepareError struct {
	Kind      PrepareErrorKind
	Required  uint64
	Available uint64
	Address   string
	ObjectID  string
	Reason    string
	CoinCount int
}

// PrepareErrorKind discriminates the failure reasons task preparation can
// hit.
type PrepareErrorKind int

const (
	ErrInsufficientBalance PrepareErrorKind = iota
	ErrNoCoinsFound
	ErrObjectNotFound
	ErrEventCreationFailed
	ErrMerkleProofNotAvailable
	ErrAllCoinsReserved
	ErrAmountOverflow
)

func (e *PrepareError) Error() string {
	switch e.Kind {
	case ErrInsufficientBalance:
		return fmt.Sprintf("insufficient balance: required %d, available %d", e.Required, e.Available)
	case ErrNoCoinsFound:
		return fmt.Sprintf("no coins found for address %s", e.Address)
	case ErrObjectNotFound:
		return fmt.Sprintf("object not found: %s", e.ObjectID)
	case ErrEventCreationFailed:
		return fmt.Sprintf("failed to create event: %s", e.Reason)
	case ErrMerkleProofNotAvailable:
		return fmt.Sprintf("merkle proof not available for object %s", e.ObjectID)
	case ErrAllCoinsReserved:
		return fmt.Sprintf("all %d coins for sender %s are currently reserved", e.CoinCount, e.Address)
	case ErrAmountOverflow:
		return fmt.Sprintf("amount plus fee overflows for sender %s", e.Address)
	default:
		return "task preparation failed"
	}
}

// Unwrap exposes the package-level sentinel behind Kind, where one exists,
// so callers can use errors.Is(err, types.ErrAmountOverflow) instead of
// switching on Kind directly.
func (e *PrepareError) Unwrap() error {
	switch e.Kind {
	case ErrInsufficientBalance:
		return types.ErrInsufficientBalance
	case ErrAmountOverflow:
		return types.ErrAmountOverflow
	case ErrAllCoinsReserved:
		return types.ErrReservationExhausted
	default:
		return nil
	}
}
