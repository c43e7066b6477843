// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Realtime layer and HTTP metrics. Store metrics live in internal/store.

var (
	// Connection Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inkwell_websocket_connections",
			Help: "Current number of open WebSocket connections",
		},
	)

	WSConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkwell_websocket_connections_total",
			Help: "Total number of accepted WebSocket upgrades",
		},
	)

	Handshakes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_handshakes_total",
			Help: "Authentication handshakes by result",
		},
		[]string{"result"}, // "authenticated", "invalid-token", "forbidden", "error"
	)

	HandshakeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inkwell_handshake_duration_seconds",
			Help:    "Time from upgrade to handshake decision",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	ConnectionCloses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_connection_closes_total",
			Help: "Connections closed by the server, by close code",
		},
		[]string{"code"},
	)

	PendingFrames = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inkwell_pending_frames_replayed",
			Help:    "Frames queued before authentication and replayed after it",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
	)

	// Frame Metrics
	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_frames_received_total",
			Help: "Binary frames received, by message type",
		},
		[]string{"type"}, // "sync", "awareness", "auth", "query-awareness", "invalid"
	)

	FramesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkwell_frames_sent_total",
			Help: "Frames written to sockets",
		},
	)

	Broadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_broadcasts_total",
			Help: "Room broadcasts, by kind",
		},
		[]string{"kind"}, // "update", "awareness"
	)

	SlowPeerDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkwell_slow_peer_drops_total",
			Help: "Connections dropped because their send buffer was full",
		},
	)

	FramePanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkwell_frame_panics_total",
			Help: "Recovered panics while handling a frame",
		},
	)

	// Actor and Room Metrics
	Actors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inkwell_project_actors",
			Help: "Live project actors",
		},
	)

	Rooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inkwell_document_rooms",
			Help: "Live document rooms across all actors",
		},
	)

	RoomReplayDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inkwell_room_replay_duration_seconds",
			Help:    "Time to replay a document from the update log",
			Buckets: prometheus.DefBuckets,
		},
	)

	RoomEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_evictions_total",
			Help: "Idle evictions, by scope",
		},
		[]string{"scope"}, // "room", "actor"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkwell_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordHandshake records the outcome of one authentication handshake.
func RecordHandshake(result string, duration time.Duration) {
	Handshakes.WithLabelValues(result).Inc()
	HandshakeDuration.Observe(duration.Seconds())
}

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackConnection adjusts the open connection gauge.
func TrackConnection(open bool) {
	if open {
		WSConnections.Inc()
		WSConnectionsTotal.Inc()
		return
	}
	WSConnections.Dec()
}
