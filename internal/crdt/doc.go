// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package crdt implements the replicated document used by the sync service.

A Doc holds any number of named roots. A root is either a text sequence or a
key/value map. Every element is identified by (client, clock) where clocks are
contiguous per client, so a state vector (client -> next clock) summarizes
everything a replica has integrated.

Text Sequences:

Each inserted rune records the element to its left at insertion time (its
origin) and a Lamport sequence number. Elements sharing an origin are ordered
newest first, which keeps concurrent insertions at the same position from
interleaving and makes the final order independent of delivery order.

Maps:

A map assignment lists the entries of its key it overwrote. The value of a key
is the assignment with the highest (client, clock) among those nothing has
overwritten, skipping deleted ones.

Deletions:

Deleted IDs are tracked in a DeleteSet of per-client clock ranges. Deleted
elements stay in the structure as tombstones so later insertions can still
anchor to them.

Wire Format:

Updates and state vectors use unsigned LEB128 integers and length-prefixed
strings (see Encoder and Decoder). An update lists elements grouped by client
in clock order, followed by a delete set. Applying the same update twice, or
applying updates in any order, yields the same document:

	delta, err := doc.ApplyUpdate(update)
	if err != nil {
	    // errors.Is(err, crdt.ErrMalformedUpdate)
	}
	if delta != nil {
	    // the update changed this replica; relay delta to peers
	}

Held Elements:

An element whose left neighbour or previous clock has not arrived is held
until it does, indexed by the ID it waits for. Apply reports how many elements
of an update were held. Held elements appear in EncodeStateAsUpdate output so
snapshots keep them. A document holds at most MaxHeldElements.
*/
package crdt
