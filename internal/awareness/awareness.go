// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package awareness tracks ephemeral presence (cursor, selection, user label)
// for the peers of one document.
//
// An awareness update is a varuint count followed by entries of
// (varuint clientID, varuint clock, varstring JSON state). The JSON literal
// null removes the client's state.
package awareness

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/crdt"
)

// ErrMalformedUpdate is returned when an awareness update cannot be decoded.
var ErrMalformedUpdate = errors.New("malformed awareness update")

var nullState = []byte("null")

// Change lists the client IDs affected by an update.
type Change struct {
	Added   []uint64
	Updated []uint64
	Removed []uint64
}

// Empty reports whether the update changed nothing.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// Announced returns the clients that now have a state because of the update.
func (c Change) Announced() []uint64 {
	return append(slices.Clone(c.Added), c.Updated...)
}

type entry struct {
	clock uint64
	state []byte
}

// Awareness is the presence map of one document. The zero value is not
// usable; call New.
type Awareness struct {
	mu     sync.Mutex
	states map[uint64][]byte
	clocks map[uint64]uint64
}

// New returns an empty presence map.
func New() *Awareness {
	return &Awareness{
		states: make(map[uint64][]byte),
		clocks: make(map[uint64]uint64),
	}
}

// ApplyUpdate merges a remote awareness update. It returns what changed and
// the accepted entries re-encoded for relaying, or a nil delta when nothing
// was accepted. Entries whose state is not valid JSON are skipped.
func (a *Awareness) ApplyUpdate(update []byte) (Change, []byte, error) {
	entries, clients, err := decode(update)
	if err != nil {
		return Change{}, nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var (
		change   Change
		accepted []uint64
		out      = make(map[uint64]entry)
	)
	for _, client := range clients {
		e := entries[client]
		prev, known := a.clocks[client]
		_, present := a.states[client]
		isNull := bytes.Equal(e.state, nullState)

		if known && !(e.clock > prev || (e.clock == prev && isNull && present)) {
			continue
		}
		a.clocks[client] = e.clock
		accepted = append(accepted, client)
		out[client] = e

		switch {
		case isNull:
			if present {
				delete(a.states, client)
				change.Removed = append(change.Removed, client)
			}
		case present:
			a.states[client] = e.state
			change.Updated = append(change.Updated, client)
		default:
			a.states[client] = e.state
			change.Added = append(change.Added, client)
		}
	}
	if len(accepted) == 0 {
		return change, nil, nil
	}
	return change, encode(accepted, out), nil
}

// Remove clears the states of the given clients and returns the removal
// update to broadcast, or nil when none of them had a state.
func (a *Awareness) Remove(clients []uint64) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	var removed []uint64
	out := make(map[uint64]entry)
	for _, client := range clients {
		if _, ok := a.states[client]; !ok {
			continue
		}
		delete(a.states, client)
		a.clocks[client]++
		out[client] = entry{clock: a.clocks[client], state: nullState}
		removed = append(removed, client)
	}
	if len(removed) == 0 {
		return nil
	}
	return encode(removed, out)
}

// Encode returns the current states of the given clients. Clients without a
// state are omitted. It returns nil if none remain.
func (a *Awareness) Encode(clients []uint64) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	var present []uint64
	out := make(map[uint64]entry)
	for _, client := range clients {
		if state, ok := a.states[client]; ok {
			present = append(present, client)
			out[client] = entry{clock: a.clocks[client], state: state}
		}
	}
	if len(present) == 0 {
		return nil
	}
	return encode(present, out)
}

// EncodeAll returns every current state. With no states it returns an
// update that lists zero clients, which peers decode as a no-op.
func (a *Awareness) EncodeAll() []byte {
	if all := a.Encode(a.Clients()); all != nil {
		return all
	}
	return encode(nil, nil)
}

// Clients returns the IDs that currently have a state, in ascending order.
func (a *Awareness) Clients() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]uint64, 0, len(a.states))
	for id := range a.states {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// State returns the JSON state of a client.
func (a *Awareness) State(client uint64) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.states[client]
	return s, ok
}

// Len returns the number of clients with a state.
func (a *Awareness) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.states)
}

// EncodeEntry builds a single-entry update. Passing a nil state encodes a removal.
func EncodeEntry(client, clock uint64, state []byte) []byte {
	if state == nil {
		state = nullState
	}
	return encode([]uint64{client}, map[uint64]entry{client: {clock: clock, state: state}})
}

func encode(order []uint64, entries map[uint64]entry) []byte {
	enc := crdt.NewEncoder(8 + len(order)*16)
	enc.WriteVarUint(uint64(len(order)))
	for _, client := range order {
		e := entries[client]
		enc.WriteVarUint(client)
		enc.WriteVarUint(e.clock)
		enc.WriteVarBytes(e.state)
	}
	return enc.Bytes()
}

// decode returns the valid entries keyed by client plus the clients in
// first-seen order. A later entry for the same client replaces an earlier one.
func decode(update []byte) (map[uint64]entry, []uint64, error) {
	d := crdt.NewDecoder(update)
	n, err := d.ReadCount(3)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}
	entries := make(map[uint64]entry, n)
	var order []uint64
	for i := 0; i < n; i++ {
		client, err := d.ReadVarUint()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: client id: %v", ErrMalformedUpdate, err)
		}
		clock, err := d.ReadVarUint()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: clock: %v", ErrMalformedUpdate, err)
		}
		raw, err := d.ReadVarBytes()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: state: %v", ErrMalformedUpdate, err)
		}
		state := bytes.TrimSpace(raw)
		if !json.Valid(state) {
			continue
		}
		if _, seen := entries[client]; !seen {
			order = append(order, client)
		}
		entries[client] = entry{clock: clock, state: bytes.Clone(state)}
	}
	if d.HasContent() {
		return nil, nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedUpdate, d.Remaining())
	}
	return entries, order, nil
}
