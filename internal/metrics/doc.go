// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package metrics holds the process-wide Prometheus collectors for the realtime
layer and the HTTP API. All collectors register with the default registry
through promauto and are exposed on GET /metrics.

Key series:

  - inkwell_websocket_connections: open sockets
  - inkwell_handshakes_total{result}: authenticated, invalid-token, forbidden, error
  - inkwell_frames_received_total{type}: sync, awareness, auth, query_awareness, invalid
  - inkwell_broadcasts_total{kind}: update, awareness
  - inkwell_slow_peer_drops_total: peers dropped for a full send buffer
  - inkwell_project_actors, inkwell_document_rooms: live actors and rooms

Update log metrics (inkwell_store_*) are defined in internal/store.
*/
package metrics
