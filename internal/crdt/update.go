// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package crdt

import (
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"
)

// ErrMalformedUpdate is returned for any update or state vector that
// cannot be decoded. A malformed update never mutates the document.
var ErrMalformedUpdate = errors.New("malformed update")

type kind byte

const (
	kindText kind = 1
	kindMap  kind = 2
)

// element is one inserted rune of a text root or one assignment of a map key.
//
// For text, origins holds at most one ID: the left neighbour at insertion
// time. For map entries, origins lists the entries of the same key that the
// assignment overwrote.
type element struct {
	id      ID
	kind    kind
	root    string
	origins []ID
	seq     uint64
	key     string
	content string
}

type decodedUpdate struct {
	elements []*element
	deletes  DeleteSet
}

func decodeUpdate(b []byte) (*decodedUpdate, error) {
	u, err := readUpdate(NewDecoder(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}
	return u, nil
}

func readUpdate(d *Decoder) (*decodedUpdate, error) {
	u := &decodedUpdate{}
	nClients, err := d.ReadCount(2)
	if err != nil {
		return nil, fmt.Errorf("client count: %w", err)
	}
	for i := 0; i < nClients; i++ {
		client, err := d.ReadVarUint()
		if err != nil {
			return nil, fmt.Errorf("client id: %w", err)
		}
		n, err := d.ReadCount(4)
		if err != nil {
			return nil, fmt.Errorf("element count: %w", err)
		}
		for j := 0; j < n; j++ {
			el, err := readElement(d, client)
			if err != nil {
				return nil, err
			}
			u.elements = append(u.elements, el)
		}
	}
	if u.deletes, err = decodeDeleteSet(d); err != nil {
		return nil, err
	}
	if d.HasContent() {
		return nil, fmt.Errorf("%d trailing bytes", d.Remaining())
	}
	return u, nil
}

func readElement(d *Decoder, client uint64) (*element, error) {
	el := &element{id: ID{Client: client}}
	var err error
	if el.id.Clock, err = d.ReadVarUint(); err != nil {
		return nil, fmt.Errorf("element clock: %w", err)
	}
	k, err := d.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("element kind: %w", err)
	}
	el.kind = kind(k)
	if el.kind != kindText && el.kind != kindMap {
		return nil, fmt.Errorf("element %s: unknown kind %d", el.id, k)
	}
	if el.root, err = d.ReadVarString(); err != nil {
		return nil, fmt.Errorf("element root: %w", err)
	}
	if el.root == "" || !utf8.ValidString(el.root) {
		return nil, fmt.Errorf("element %s: invalid root name", el.id)
	}

	nOrigins, err := d.ReadCount(2)
	if err != nil {
		return nil, fmt.Errorf("element origins: %w", err)
	}
	if el.kind == kindText && nOrigins > 1 {
		return nil, fmt.Errorf("text element %s has %d origins", el.id, nOrigins)
	}
	for i := 0; i < nOrigins; i++ {
		var o ID
		if o.Client, err = d.ReadVarUint(); err != nil {
			return nil, fmt.Errorf("origin client: %w", err)
		}
		if o.Clock, err = d.ReadVarUint(); err != nil {
			return nil, fmt.Errorf("origin clock: %w", err)
		}
		if o == el.id {
			return nil, fmt.Errorf("element %s references itself", el.id)
		}
		el.origins = append(el.origins, o)
	}

	switch el.kind {
	case kindText:
		if el.seq, err = d.ReadVarUint(); err != nil {
			return nil, fmt.Errorf("element seq: %w", err)
		}
	case kindMap:
		if el.key, err = d.ReadVarString(); err != nil {
			return nil, fmt.Errorf("element key: %w", err)
		}
		if !utf8.ValidString(el.key) {
			return nil, fmt.Errorf("element %s: key is not valid UTF-8", el.id)
		}
	}
	if el.content, err = d.ReadVarString(); err != nil {
		return nil, fmt.Errorf("element content: %w", err)
	}
	if !utf8.ValidString(el.content) {
		return nil, fmt.Errorf("element %s: content is not valid UTF-8", el.id)
	}
	if el.kind == kindText && el.content == "" {
		return nil, fmt.Errorf("text element %s is empty", el.id)
	}
	return el, nil
}

func (el *element) encode(enc *Encoder) {
	enc.WriteVarUint(el.id.Clock)
	_ = enc.WriteByte(byte(el.kind))
	enc.WriteVarString(el.root)
	enc.WriteVarUint(uint64(len(el.origins)))
	for _, o := range el.origins {
		enc.WriteVarUint(o.Client)
		enc.WriteVarUint(o.Clock)
	}
	switch el.kind {
	case kindText:
		enc.WriteVarUint(el.seq)
	case kindMap:
		enc.WriteVarString(el.key)
	}
	enc.WriteVarString(el.content)
}

// encodeUpdate writes elements grouped by client in (client, clock) order
// followed by the delete set.
func encodeUpdate(elements []*element, ds DeleteSet) []byte {
	sorted := slices.Clone(elements)
	slices.SortFunc(sorted, func(a, b *element) int { return compareID(a.id, b.id) })

	enc := NewEncoder(16 + len(sorted)*12)
	var groups [][]*element
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].id.Client == sorted[i].id.Client {
			j++
		}
		groups = append(groups, sorted[i:j])
		i = j
	}
	enc.WriteVarUint(uint64(len(groups)))
	for _, g := range groups {
		enc.WriteVarUint(g[0].id.Client)
		enc.WriteVarUint(uint64(len(g)))
		for _, el := range g {
			el.encode(enc)
		}
	}
	if ds == nil {
		ds = DeleteSet{}
	}
	ds.encode(enc)
	return enc.Bytes()
}
