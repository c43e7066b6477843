// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package crdt

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ErrIndexOutOfRange is returned by local edits addressing a position past
// the end of the visible text.
var ErrIndexOutOfRange = errors.New("index out of range")

// ErrTooManyHeld is returned for an update that would leave too many
// elements waiting for dependencies that have not arrived.
var ErrTooManyHeld = errors.New("too many elements waiting for dependencies")

// MaxHeldElements bounds the elements a document holds back while their
// dependencies are missing.
const MaxHeldElements = 1 << 16

type anchor struct {
	root   string
	origin ID
	start  bool
}

type mapKey struct {
	root string
	key  string
}

// Doc is a replicated document made of named text and map roots.
// All methods are safe for concurrent use.
type Doc struct {
	mu sync.Mutex

	client  uint64
	lamport uint64

	next     StateVector
	store    map[uint64][]*element
	children map[anchor][]*element
	entries  map[mapKey][]*element
	replaced map[ID]struct{}
	deletes  DeleteSet
	pending  map[ID]*element
	waiting  map[ID][]ID
}

// NewDoc creates an empty document. clientID identifies local edits made
// through InsertText, DeleteText, SetMap and DeleteMap; replicas that only
// apply remote updates may pass any value.
func NewDoc(clientID uint64) *Doc {
	return &Doc{
		client:   clientID,
		next:     StateVector{},
		store:    make(map[uint64][]*element),
		children: make(map[anchor][]*element),
		entries:  make(map[mapKey][]*element),
		replaced: make(map[ID]struct{}),
		deletes:  DeleteSet{},
		pending:  make(map[ID]*element),
		waiting:  make(map[ID][]ID),
	}
}

// ClientID returns the identifier used for local edits.
func (d *Doc) ClientID() uint64 {
	return d.client
}

// ApplyResult describes the effect of one applied update.
type ApplyResult struct {
	// Delta is the part of the update that changed this replica, or nil.
	Delta []byte
	// Held counts elements of the update still waiting for dependencies.
	Held int
}

// ApplyUpdate merges a binary update into the document.
//
// It returns the part of the update that changed this replica, encoded as an
// update, or nil if the update was already fully known. Elements whose
// dependencies have not arrived yet are held back and integrated by a later
// call; they are reported in the delta of the call that integrates them.
func (d *Doc) ApplyUpdate(update []byte) ([]byte, error) {
	res, err := d.Apply(update)
	return res.Delta, err
}

// Apply is ApplyUpdate that also reports how many of the update's elements
// were held back. An update that would leave more than MaxHeldElements
// elements waiting is rejected with ErrTooManyHeld and changes nothing.
func (d *Doc) Apply(update []byte) (ApplyResult, error) {
	u, err := decodeUpdate(update)
	if err != nil {
		return ApplyResult{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	fresh := make([]ID, 0, len(u.elements))
	for _, el := range u.elements {
		if el.id.Clock < d.next[el.id.Client] {
			continue
		}
		if _, ok := d.pending[el.id]; ok {
			continue
		}
		d.pending[el.id] = el
		fresh = append(fresh, el.id)
	}
	if len(d.pending) > MaxHeldElements && d.heldAfterLocked() > MaxHeldElements {
		for _, id := range fresh {
			delete(d.pending, id)
		}
		return ApplyResult{}, fmt.Errorf("%w: limit %d", ErrTooManyHeld, MaxHeldElements)
	}

	applied := settle(d.next, d.pending, d.waiting, fresh, d.integrateLocked)
	delDelta := d.deletes.merge(u.deletes)

	var res ApplyResult
	for _, id := range fresh {
		if _, ok := d.pending[id]; ok {
			res.Held++
		}
	}
	if len(applied) > 0 || len(delDelta) > 0 {
		res.Delta = encodeUpdate(applied, delDelta)
	}
	return res, nil
}

// heldAfterLocked returns how many elements would still be waiting once
// everything currently held has been settled, without changing the document.
func (d *Doc) heldAfterLocked() int {
	next := maps.Clone(d.next)
	pool := maps.Clone(d.pending)
	queue := make([]ID, 0, len(pool))
	for id := range pool {
		queue = append(queue, id)
	}
	settle(next, pool, make(map[ID][]ID), queue, nil)
	return len(pool)
}

// settle integrates every element of pending that the queued IDs make
// ready. Elements that still miss a dependency are parked in waiting under
// that dependency and requeued once it is integrated.
func settle(next StateVector, pending map[ID]*element, waiting map[ID][]ID, queue []ID, integrate func(*element)) []*element {
	var applied []*element
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		el, ok := pending[id]
		if !ok {
			continue
		}
		if el.id.Clock < next[el.id.Client] {
			delete(pending, id)
			continue
		}
		if dep, missing := missingDependency(next, el); missing {
			waiting[dep] = append(waiting[dep], id)
			continue
		}

		delete(pending, id)
		next[el.id.Client] = el.id.Clock + 1
		if integrate != nil {
			integrate(el)
		}
		applied = append(applied, el)
		if woken, ok := waiting[id]; ok {
			queue = append(queue, woken...)
			delete(waiting, id)
		}
	}
	return applied
}

// missingDependency returns the first element el needs that next has not
// integrated: the previous clock of its client, then its origins.
func missingDependency(next StateVector, el *element) (ID, bool) {
	if el.id.Clock > next[el.id.Client] {
		return ID{Client: el.id.Client, Clock: el.id.Clock - 1}, true
	}
	for _, o := range el.origins {
		if o.Clock >= next[o.Client] {
			return o, true
		}
	}
	return ID{}, false
}

func (d *Doc) integrateLocked(el *element) {
	d.store[el.id.Client] = append(d.store[el.id.Client], el)
	d.next[el.id.Client] = el.id.Clock + 1

	switch el.kind {
	case kindText:
		if el.seq > d.lamport {
			d.lamport = el.seq
		}
		a := anchor{root: el.root, start: true}
		if len(el.origins) == 1 {
			a = anchor{root: el.root, origin: el.origins[0]}
		}
		siblings := d.children[a]
		i, _ := slices.BinarySearchFunc(siblings, el, compareSiblings)
		d.children[a] = slices.Insert(siblings, i, el)
	case kindMap:
		k := mapKey{root: el.root, key: el.key}
		d.entries[k] = append(d.entries[k], el)
		for _, o := range el.origins {
			d.replaced[o] = struct{}{}
		}
	}
}

// compareSiblings orders elements inserted at the same position: the most
// recent insertion (highest seq) comes first, ties broken by higher client.
func compareSiblings(a, b *element) int {
	switch {
	case a.seq != b.seq:
		if a.seq > b.seq {
			return -1
		}
		return 1
	case a.id.Client != b.id.Client:
		if a.id.Client > b.id.Client {
			return -1
		}
		return 1
	case a.id.Clock != b.id.Clock:
		if a.id.Clock > b.id.Clock {
			return -1
		}
		return 1
	}
	return 0
}

// sequenceLocked returns every element of a text root in document order,
// including deleted ones.
func (d *Doc) sequenceLocked(root string) []*element {
	var out []*element
	stack := reversed(d.children[anchor{root: root, start: true}])
	for len(stack) > 0 {
		el := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, el)
		stack = append(stack, reversed(d.children[anchor{root: root, origin: el.id}])...)
	}
	return out
}

func reversed(els []*element) []*element {
	out := slices.Clone(els)
	slices.Reverse(out)
	return out
}

func (d *Doc) visibleLocked(root string) []*element {
	all := d.sequenceLocked(root)
	out := all[:0]
	for _, el := range all {
		if !d.deletes.Contains(el.id) {
			out = append(out, el)
		}
	}
	return out
}

// Text returns the visible content of a text root.
func (d *Doc) Text(root string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var n int
	vis := d.visibleLocked(root)
	for _, el := range vis {
		n += len(el.content)
	}
	buf := make([]byte, 0, n)
	for _, el := range vis {
		buf = append(buf, el.content...)
	}
	return string(buf)
}

// liveEntriesLocked returns the entries of a key that no later assignment
// has replaced.
func (d *Doc) liveEntriesLocked(k mapKey) []*element {
	var out []*element
	for _, el := range d.entries[k] {
		if _, ok := d.replaced[el.id]; !ok {
			out = append(out, el)
		}
	}
	return out
}

// MapGet returns the current value of key in a map root. Concurrent
// assignments resolve to the one with the highest (client, clock).
func (d *Doc) MapGet(root, key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mapGetLocked(mapKey{root: root, key: key})
}

func (d *Doc) mapGetLocked(k mapKey) (string, bool) {
	var winner *element
	for _, el := range d.liveEntriesLocked(k) {
		if d.deletes.Contains(el.id) {
			continue
		}
		if winner == nil || compareID(el.id, winner.id) > 0 {
			winner = el
		}
	}
	if winner == nil {
		return "", false
	}
	return winner.content, true
}

// Map returns a copy of every present key of a map root.
func (d *Doc) Map(root string) map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]string)
	for k := range d.entries {
		if k.root != root {
			continue
		}
		if v, ok := d.mapGetLocked(k); ok {
			out[k.key] = v
		}
	}
	return out
}

// StateVector returns a copy of the document's state vector.
func (d *Doc) StateVector() StateVector {
	d.mu.Lock()
	defer d.mu.Unlock()
	sv := make(StateVector, len(d.next))
	for c, clock := range d.next {
		sv[c] = clock
	}
	return sv
}

// EncodeStateVector returns the encoded state vector.
func (d *Doc) EncodeStateVector() []byte {
	return d.StateVector().Encode()
}

// EncodeStateAsUpdate encodes every element the holder of the given state
// vector is missing, plus the complete delete set. Elements still waiting
// for dependencies are included, so a snapshot keeps them. A nil or empty
// vector yields the full document state. Replicas holding the same elements
// produce byte-identical output.
func (d *Doc) EncodeStateAsUpdate(encodedStateVector []byte) ([]byte, error) {
	sv, err := DecodeStateVector(encodedStateVector)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var missing []*element
	for client, els := range d.store {
		from := sv[client]
		if from < uint64(len(els)) {
			missing = append(missing, els[from:]...)
		}
	}
	for _, el := range d.pending {
		if el.id.Clock >= sv[el.id.Client] {
			missing = append(missing, el)
		}
	}
	return encodeUpdate(missing, d.deletes), nil
}

// PendingCount returns the number of received elements still waiting for
// their dependencies.
func (d *Doc) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// ElementCount returns the number of integrated elements, deleted or not.
func (d *Doc) ElementCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int
	for _, els := range d.store {
		n += len(els)
	}
	return n
}

func (d *Doc) nextLocalIDLocked() ID {
	return ID{Client: d.client, Clock: d.next[d.client]}
}

// InsertText inserts text at the given rune index of a text root and
// returns the update describing the edit.
func (d *Doc) InsertText(root string, index int, text string) ([]byte, error) {
	if root == "" {
		return nil, fmt.Errorf("empty root name")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	vis := d.visibleLocked(root)
	if index < 0 || index > len(vis) {
		return nil, fmt.Errorf("%w: insert at %d, length %d", ErrIndexOutOfRange, index, len(vis))
	}

	var origin *ID
	if index > 0 {
		id := vis[index-1].id
		origin = &id
	}
	var created []*element
	for _, r := range text {
		d.lamport++
		el := &element{
			id:      d.nextLocalIDLocked(),
			kind:    kindText,
			root:    root,
			seq:     d.lamport,
			content: string(r),
		}
		if origin != nil {
			el.origins = []ID{*origin}
		}
		d.integrateLocked(el)
		created = append(created, el)
		id := el.id
		origin = &id
	}
	return encodeUpdate(created, nil), nil
}

// DeleteText removes length runes starting at index and returns the update
// describing the edit.
func (d *Doc) DeleteText(root string, index, length int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	vis := d.visibleLocked(root)
	if index < 0 || length < 0 || index+length > len(vis) {
		return nil, fmt.Errorf("%w: delete %d+%d, length %d", ErrIndexOutOfRange, index, length, len(vis))
	}
	ds := DeleteSet{}
	for _, el := range vis[index : index+length] {
		ds.Add(el.id)
	}
	d.deletes.merge(ds)
	return encodeUpdate(nil, ds), nil
}

// SetMap assigns value to key in a map root and returns the update
// describing the edit.
func (d *Doc) SetMap(root, key, value string) ([]byte, error) {
	if root == "" {
		return nil, fmt.Errorf("empty root name")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	el := &element{
		id:      d.nextLocalIDLocked(),
		kind:    kindMap,
		root:    root,
		key:     key,
		content: value,
	}
	for _, prev := range d.liveEntriesLocked(mapKey{root: root, key: key}) {
		el.origins = append(el.origins, prev.id)
	}
	d.integrateLocked(el)
	return encodeUpdate([]*element{el}, nil), nil
}

// DeleteMap removes key from a map root. It returns nil if the key was
// not present.
func (d *Doc) DeleteMap(root, key string) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	ds := DeleteSet{}
	for _, el := range d.liveEntriesLocked(mapKey{root: root, key: key}) {
		if !d.deletes.Contains(el.id) {
			ds.Add(el.id)
		}
	}
	if len(ds) == 0 {
		return nil
	}
	d.deletes.merge(ds)
	return encodeUpdate(nil, ds)
}
