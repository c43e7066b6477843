// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package crdt

import (
	"fmt"
	"slices"
)

// ID identifies a single element. Clocks are contiguous per client,
// starting at zero.
type ID struct {
	Client uint64
	Clock  uint64
}

func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Client, id.Clock)
}

func compareID(a, b ID) int {
	switch {
	case a.Client < b.Client:
		return -1
	case a.Client > b.Client:
		return 1
	case a.Clock < b.Clock:
		return -1
	case a.Clock > b.Clock:
		return 1
	}
	return 0
}

// StateVector maps each client to the next clock this replica expects from it.
type StateVector map[uint64]uint64

// Encode serializes the vector sorted by client, so equal vectors encode equally.
func (sv StateVector) Encode() []byte {
	clients := make([]uint64, 0, len(sv))
	for c, clock := range sv {
		if clock > 0 {
			clients = append(clients, c)
		}
	}
	slices.Sort(clients)

	enc := NewEncoder(1 + len(clients)*4)
	enc.WriteVarUint(uint64(len(clients)))
	for _, c := range clients {
		enc.WriteVarUint(c)
		enc.WriteVarUint(sv[c])
	}
	return enc.Bytes()
}

// DecodeStateVector parses an encoded state vector. An empty input is the
// empty vector.
func DecodeStateVector(b []byte) (StateVector, error) {
	sv := StateVector{}
	if len(b) == 0 {
		return sv, nil
	}
	d := NewDecoder(b)
	n, err := d.ReadCount(2)
	if err != nil {
		return nil, fmt.Errorf("%w: state vector: %v", ErrMalformedUpdate, err)
	}
	for i := 0; i < n; i++ {
		client, err := d.ReadVarUint()
		if err != nil {
			return nil, fmt.Errorf("%w: state vector client: %v", ErrMalformedUpdate, err)
		}
		clock, err := d.ReadVarUint()
		if err != nil {
			return nil, fmt.Errorf("%w: state vector clock: %v", ErrMalformedUpdate, err)
		}
		sv[client] = clock
	}
	if d.HasContent() {
		return nil, fmt.Errorf("%w: %d trailing bytes after state vector", ErrMalformedUpdate, d.Remaining())
	}
	return sv, nil
}
