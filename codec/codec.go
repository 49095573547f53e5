// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package codec provides encoding/decoding for persisted anchor types.
package codec

import (
	"encoding/json"
	"fmt"
)

// Version identifies the wire encoding used for a marshaled value.
type Version uint16

const (
	// CurrentVersion is the version new writes are marshaled with.
	CurrentVersion Version = 0
)

// Codec is the package-wide marshaler used by the store backends.
var Codec = &JSONCodec{}

// JSONCodec implements Marshal/Unmarshal over encoding/json, versioned so a
// future wire format change can coexist with old records.
type JSONCodec struct{}

// Marshal encodes v for the given version.
func (c *JSONCodec) Marshal(version Version, v interface{}) ([]byte, error) {
	if version != CurrentVersion {
		return nil, fmt.Errorf("codec: unsupported version %d", version)
	}
	return json.Marshal(v)
}

// Unmarshal decodes data into v, returning the version it was written with.
func (c *JSONCodec) Unmarshal(data []byte, v interface{}) (Version, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return 0, err
	}
	return CurrentVersion, nil
}
