// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/luxfi/anchor/vlc"
	"github.com/luxfi/ids"
)

// EventStatus tracks an event's progress through the pipeline.
type EventStatus int

const (
	EventPending EventStatus = iota
	EventInWorkQueue
	EventExecuted
	EventConfirmed
	EventFinalized
	EventFailed
)

func (s EventStatus) String() string {
	switch s {
	case EventPending:
		return "pending"
	case EventInWorkQueue:
		return "in_work_queue"
	case EventExecuted:
		return "executed"
	case EventConfirmed:
		return "confirmed"
	case EventFinalized:
		return "finalized"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PayloadKind discriminates the closed EventPayload sum type.
type PayloadKind int

const (
	PayloadGenesis PayloadKind = iota
	PayloadTransfer
	PayloadValidatorRegister
	PayloadValidatorUnregister
	PayloadSolverRegister
	PayloadSolverUnregister
	PayloadUserRegister
	PayloadSubnetRegister
	PayloadTaskSubmit
	PayloadSystem
)

// EventPayload is a closed sum type. Every concrete payload implements Kind
// and is matched exhaustively by serializers and verifiers; there is no
// dynamic dispatch beyond the type switch this interface enables.
type EventPayload interface {
	Kind() PayloadKind
	isEventPayload()
}

type GenesisPayload struct {
	Creator string
}

func (GenesisPayload) Kind() PayloadKind { return PayloadGenesis }
func (GenesisPayload) isEventPayload()   {}

type TransferPayload struct {
	Sender    string
	Recipient string
	Amount    uint64
	Fee       uint64
	CoinType  string
	SubnetID  SubnetID
}

func (TransferPayload) Kind() PayloadKind { return PayloadTransfer }
func (TransferPayload) isEventPayload()   {}

type ValidatorRegisterPayload struct {
	ValidatorID string
	Stake       uint64
	Address     string
}

func (ValidatorRegisterPayload) Kind() PayloadKind { return PayloadValidatorRegister }
func (ValidatorRegisterPayload) isEventPayload()   {}

type ValidatorUnregisterPayload struct {
	ValidatorID string
}

func (ValidatorUnregisterPayload) Kind() PayloadKind { return PayloadValidatorUnregister }
func (ValidatorUnregisterPayload) isEventPayload()   {}

type SolverRegisterPayload struct {
	SolverID string
	Endpoint string
}

func (SolverRegisterPayload) Kind() PayloadKind { return PayloadSolverRegister }
func (SolverRegisterPayload) isEventPayload()   {}

type SolverUnregisterPayload struct {
	SolverID string
}

func (SolverUnregisterPayload) Kind() PayloadKind { return PayloadSolverUnregister }
func (SolverUnregisterPayload) isEventPayload()   {}

type UserRegisterPayload struct {
	Address string
}

func (UserRegisterPayload) Kind() PayloadKind { return PayloadUserRegister }
func (UserRegisterPayload) isEventPayload()   {}

type SubnetRegisterPayload struct {
	SubnetID SubnetID
	Name     string
	Creator  string
}

func (SubnetRegisterPayload) Kind() PayloadKind { return PayloadSubnetRegister }
func (SubnetRegisterPayload) isEventPayload()   {}

type TaskSubmitPayload struct {
	TaskID   ids.ID
	SubnetID SubnetID
}

func (TaskSubmitPayload) Kind() PayloadKind { return PayloadTaskSubmit }
func (TaskSubmitPayload) isEventPayload()   {}

type SystemPayload struct {
	Note string
}

func (SystemPayload) Kind() PayloadKind { return PayloadSystem }
func (SystemPayload) isEventPayload()   {}

// StateChange is one write recorded by an event's execution result.
type StateChange struct {
	Key      string
	OldValue []byte
	NewValue []byte
}

// ExecutionResult is attached to an Event after the TEE has executed it.
type ExecutionResult struct {
	Success       bool
	Message       string
	StateChanges  []StateChange
}

// Event is the unit of computation exchanged between nodes. Its id is fixed
// at construction time from (creator, timestamp, parent_ids, vlc_snapshot)
// and never changes when payload or execution_result are attached later.
type Event struct {
	ID             EventID
	ParentIDs      []EventID
	VLC            vlc.Snapshot
	Creator        string
	Timestamp      uint64
	Payload        EventPayload
	ExecutedBy     string
	SubnetID       SubnetID
	Status         EventStatus
	ExecutionResult *ExecutionResult

	depth uint64 // set by the DAG on insertion
}

// Depth returns the event's DAG depth (0 for genesis).
func (e *Event) Depth() uint64 { return e.depth }

// SetDepth is called exclusively by the dag package on insertion.
func (e *Event) SetDepth(d uint64) { e.depth = d }

// eventWire is Event's on-wire shape: depth is promoted to an exported field
// and Payload is tagged with its Kind so Unmarshal can reconstruct the
// correct concrete type of the closed EventPayload sum.
type eventWire struct {
	ID              EventID
	ParentIDs       []EventID
	VLC             vlc.Snapshot
	Creator         string
	Timestamp       uint64
	PayloadKind     PayloadKind
	Payload         json.RawMessage
	ExecutedBy      string
	SubnetID        SubnetID
	Status          EventStatus
	ExecutionResult *ExecutionResult
	Depth           uint64
}

// MarshalJSON tags Payload with its PayloadKind so MarshalJSON's counterpart
// can rebuild the correct concrete type.
func (e *Event) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	var kind PayloadKind
	if e.Payload != nil {
		kind = e.Payload.Kind()
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(eventWire{
		ID:              e.ID,
		ParentIDs:       e.ParentIDs,
		VLC:             e.VLC,
		Creator:         e.Creator,
		Timestamp:       e.Timestamp,
		PayloadKind:     kind,
		Payload:         raw,
		ExecutedBy:      e.ExecutedBy,
		SubnetID:        e.SubnetID,
		Status:          e.Status,
		ExecutionResult: e.ExecutionResult,
		Depth:           e.depth,
	})
}

// UnmarshalJSON rebuilds Payload's concrete type from its tagged Kind.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	payload, err := unmarshalPayload(w.PayloadKind, w.Payload)
	if err != nil {
		return err
	}
	*e = Event{
		ID:              w.ID,
		ParentIDs:       w.ParentIDs,
		VLC:             w.VLC,
		Creator:         w.Creator,
		Timestamp:       w.Timestamp,
		Payload:         payload,
		ExecutedBy:      w.ExecutedBy,
		SubnetID:        w.SubnetID,
		Status:          w.Status,
		ExecutionResult: w.ExecutionResult,
		depth:           w.Depth,
	}
	return nil
}

func unmarshalPayload(kind PayloadKind, raw json.RawMessage) (EventPayload, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var err error
	switch kind {
	case PayloadGenesis:
		var p GenesisPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case PayloadTransfer:
		var p TransferPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case PayloadValidatorRegister:
		var p ValidatorRegisterPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case PayloadValidatorUnregister:
		var p ValidatorUnregisterPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case PayloadSolverRegister:
		var p SolverRegisterPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case PayloadSolverUnregister:
		var p SolverUnregisterPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case PayloadUserRegister:
		var p UserRegisterPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case PayloadSubnetRegister:
		var p SubnetRegisterPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case PayloadTaskSubmit:
		var p TaskSubmitPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case PayloadSystem:
		var p SystemPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	default:
		return nil, fmt.Errorf("types: unknown payload kind %d", kind)
	}
}

// computeEventID implements spec.md §6's bit-exact event hashing: SHA-256
// over the canonical serialization of (creator, timestamp, parent_ids,
// vlc_snapshot). Payload and execution_result are excluded.
func computeEventID(creator string, timestamp uint64, parentIDs []EventID, snap vlc.Snapshot) EventID {
	h := sha256.New()
	h.Write([]byte(creator))
	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], timestamp)
	h.Write(tsBuf[:])
	for _, pid := range parentIDs {
		h.Write(pid[:])
	}
	binary.LittleEndian.PutUint64(tsBuf[:], snap.LogicalTime)
	h.Write(tsBuf[:])
	binary.LittleEndian.PutUint64(tsBuf[:], snap.PhysicalTime)
	h.Write(tsBuf[:])
	nodes := make([]string, 0, len(snap.VectorClock))
	for node := range snap.VectorClock {
		nodes = append(nodes, node)
	}
	sortStrings(nodes)
	for _, node := range nodes {
		h.Write([]byte(node))
		binary.LittleEndian.PutUint64(tsBuf[:], snap.VectorClock[node])
		h.Write(tsBuf[:])
	}
	var id ids.ID
	copy(id[:], h.Sum(nil))
	return id
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// NewEvent constructs an event with parents, a VLC snapshot, a creator, and
// a payload, computing its content-addressed id.
func NewEvent(payload EventPayload, parentIDs []EventID, snap vlc.Snapshot, creator string, now uint64) *Event {
	return &Event{
		ID:        computeEventID(creator, now, parentIDs, snap),
		ParentIDs: parentIDs,
		VLC:       snap,
		Creator:   creator,
		Timestamp: now,
		Payload:   payload,
		Status:    EventPending,
	}
}

// NewGenesisEvent constructs a parentless genesis event for creator.
func NewGenesisEvent(creator string, snap vlc.Snapshot, now uint64) *Event {
	return NewEvent(GenesisPayload{Creator: creator}, nil, snap, creator, now)
}
