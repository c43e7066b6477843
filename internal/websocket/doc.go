// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package websocket implements the realtime core: project actors, document
rooms and the per-connection handshake state machine.

Key Components:

  - Registry: maps a project key (owner:slug) to its Actor, created lazily
  - Actor: owns the connections and live documents of one project
  - Room: one goroutine per live document holding the CRDT state and the
    awareness map; every mutation of a document goes through its mailbox
  - Conn: one socket, with a readPump and a writePump

Architecture:

	┌──────────┐
	│ Registry │  owner:slug → Actor
	└────┬─────┘
	     │
	┌────┴─────────────────────┐
	│ Actor (alice:novel)      │
	│  ┌────────┐  ┌────────┐  │
	│  │ Room   │  │ Room   │  │  alice:novel:ch1, alice:novel:ch2
	│  └──┬──┬──┘  └───┬────┘  │
	│   Conn Conn     Conn     │
	└──────────────────────────┘

Handshake:

A connection starts unauthenticated. Its first text frame is a bearer
token; binary frames received before that are queued (up to
MaxPendingFrames). On success the server sends "authenticated", binds the
connection to its room and replays the queue in arrival order. On failure
it sends "access-denied:<reason>" and closes with 4001, 4003 or 4500.

Room protocol:

On join the room sends sync step 1 with its state vector and, if any peer
has announced presence, the full awareness state. Sync step 2 and update
messages are merged, persisted through the UpdateLog and broadcast to the
other peers as updates. When a connection leaves, the awareness clients it
announced are removed and the removal is broadcast.

Usage Example:

	registry := websocket.NewRegistry(cfg, updateLog, verifier)
	go registry.RunWithContext(ctx)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
	    return
	}
	if _, err := registry.Accept(ws, doc, r.RemoteAddr); err != nil {
	    ws.Close()
	}

Thread Safety:

Registry, Actor and Conn methods are safe for concurrent use. Room state is
only touched by the room goroutine; Room.Stats reads atomic counters.
*/
package websocket
