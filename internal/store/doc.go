// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package store persists document update fragments in BadgerDB.

Every change a room integrates is appended as one immutable fragment. On
startup a room replays LoadAll in order to rebuild its document; replay is
safe in any state because merging updates is idempotent.

Key Layout:

	"frag" 0x00 <documentID> 0x00 <uint64 big-endian sequence>

The sequence is a nanosecond timestamp forced to be strictly increasing
within the process (and above anything LoadAll has observed), so a prefix
scan returns a document's fragments in append order.

Failure Handling:

Writes go through a circuit breaker. A fragment that cannot be written is
kept in a per-document in-memory queue and Append returns ErrDeferred; later
fragments of the same document queue behind it. The retry loop flushes the
queues with exponential backoff (RetryBackoff * 2^attempts, capped at five
minutes) and drops a fragment after MaxRetries retries, logging an error and
counting it in inkwell_store_dropped_fragments_total. Peers have already
received the change by then, so a storage outage costs durability, never
consistency between connected clients.

Compaction:

When a document reaches CompactThreshold fragments, its room calls Compact
with a full-state snapshot. The snapshot is written under a fresh key before
older keys are deleted; existing keys are never overwritten.

Background Loops:

	retry := store.NewRetryLoop(s) // flushes deferred fragments
	gc := store.NewGCLoop(s)       // value log GC
*/
package store
