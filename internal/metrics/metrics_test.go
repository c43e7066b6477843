// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHandshake(t *testing.T) {
	tests := []string{"authenticated", "invalid-token", "forbidden", "error"}
	for _, result := range tests {
		t.Run(result, func(t *testing.T) {
			before := testutil.ToFloat64(Handshakes.WithLabelValues(result))
			RecordHandshake(result, 5*time.Millisecond)
			if got := testutil.ToFloat64(Handshakes.WithLabelValues(result)); got != before+1 {
				t.Errorf("handshakes{%s} = %v, want %v", result, got, before+1)
			}
		})
	}
}

func TestTrackConnection(t *testing.T) {
	open := testutil.ToFloat64(WSConnections)
	total := testutil.ToFloat64(WSConnectionsTotal)

	TrackConnection(true)
	TrackConnection(true)
	TrackConnection(false)

	if got := testutil.ToFloat64(WSConnections); got != open+1 {
		t.Errorf("connections = %v, want %v", got, open+1)
	}
	if got := testutil.ToFloat64(WSConnectionsTotal); got != total+2 {
		t.Errorf("connections_total = %v, want %v", got, total+2)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/health/live", "200"))
	RecordAPIRequest("GET", "/api/v1/health/live", "200", time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/health/live", "200"))
	if after != before+1 {
		t.Errorf("requests = %v, want %v", after, before+1)
	}
	if testutil.CollectAndCount(APIRequestDuration) == 0 {
		t.Error("duration histogram has no series")
	}
}
