// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package crdt

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
)

// Range is a run of deleted clocks [Clock, Clock+Len) of one client.
type Range struct {
	Clock uint64
	Len   uint64
}

func (r Range) end() uint64 { return r.Clock + r.Len }

// DeleteSet records deleted element IDs as per-client clock ranges.
// Ranges are kept sorted and merged.
type DeleteSet map[uint64][]Range

// Contains reports whether id has been deleted.
func (ds DeleteSet) Contains(id ID) bool {
	rs := ds[id.Client]
	i := sort.Search(len(rs), func(i int) bool { return rs[i].end() > id.Clock })
	return i < len(rs) && rs[i].Clock <= id.Clock
}

// Add marks a single ID deleted.
func (ds DeleteSet) Add(id ID) {
	ds[id.Client] = normalizeRanges(append(ds[id.Client], Range{Clock: id.Clock, Len: 1}))
}

// merge folds other into ds and returns the subset of other that changed ds.
func (ds DeleteSet) merge(other DeleteSet) DeleteSet {
	delta := DeleteSet{}
	for client, rs := range other {
		before := ds[client]
		union := normalizeRanges(append(slices.Clone(before), rs...))
		if slices.Equal(before, union) {
			continue
		}
		ds[client] = union
		delta[client] = normalizeRanges(slices.Clone(rs))
	}
	return delta
}

func normalizeRanges(rs []Range) []Range {
	out := rs[:0]
	for _, r := range rs {
		if r.Len > 0 {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b Range) int { return cmp.Compare(a.Clock, b.Clock) })

	merged := out[:0]
	for _, r := range out {
		if n := len(merged); n > 0 && merged[n-1].end() >= r.Clock {
			if r.end() > merged[n-1].end() {
				merged[n-1].Len = r.end() - merged[n-1].Clock
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func (ds DeleteSet) encode(enc *Encoder) {
	clients := make([]uint64, 0, len(ds))
	for c, rs := range ds {
		if len(rs) > 0 {
			clients = append(clients, c)
		}
	}
	slices.Sort(clients)

	enc.WriteVarUint(uint64(len(clients)))
	for _, c := range clients {
		rs := ds[c]
		enc.WriteVarUint(c)
		enc.WriteVarUint(uint64(len(rs)))
		for _, r := range rs {
			enc.WriteVarUint(r.Clock)
			enc.WriteVarUint(r.Len)
		}
	}
}

func decodeDeleteSet(d *Decoder) (DeleteSet, error) {
	ds := DeleteSet{}
	n, err := d.ReadCount(2)
	if err != nil {
		return nil, fmt.Errorf("delete set: %w", err)
	}
	for i := 0; i < n; i++ {
		client, err := d.ReadVarUint()
		if err != nil {
			return nil, fmt.Errorf("delete set client: %w", err)
		}
		m, err := d.ReadCount(2)
		if err != nil {
			return nil, fmt.Errorf("delete set ranges: %w", err)
		}
		rs := make([]Range, 0, m)
		for j := 0; j < m; j++ {
			clock, err := d.ReadVarUint()
			if err != nil {
				return nil, fmt.Errorf("delete range clock: %w", err)
			}
			length, err := d.ReadVarUint()
			if err != nil {
				return nil, fmt.Errorf("delete range length: %w", err)
			}
			if clock+length < clock {
				return nil, fmt.Errorf("delete range %d+%d overflows", clock, length)
			}
			rs = append(rs, Range{Clock: clock, Len: length})
		}
		ds[client] = normalizeRanges(append(ds[client], rs...))
	}
	return ds, nil
}
