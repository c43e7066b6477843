// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/inkwell/internal/models"
)

const storePingTimeout = 2 * time.Second

// Health returns service status, store reachability and live counts.
//
// Method: GET
// Path: /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	reachable := h.pingStore(r.Context()) == nil
	stats := h.registry.Stats()

	status := "healthy"
	if !reachable {
		status = "degraded"
	}

	respondSuccess(w, r, models.HealthStatus{
		Status:         status,
		Version:        Version,
		StoreReachable: reachable,
		Actors:         stats.Actors,
		Connections:    stats.Connections,
		Rooms:          stats.Rooms,
		Uptime:         time.Since(h.startTime).Seconds(),
	})
}

// HealthLive is the liveness probe. It answers as long as the process serves HTTP.
//
// Method: GET
// Path: /api/v1/health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe. It fails with 503 while the update
// store is unreachable.
//
// Method: GET
// Path: /api/v1/health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok"}
	if err := h.pingStore(r.Context()); err != nil {
		checks["store"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status:   "error",
			Data:     models.ReadinessStatus{Ready: false, Checks: checks},
			Metadata: metadata(r),
			Error:    &models.APIError{Code: ErrCodeServiceUnavailable, Message: "update store unreachable"},
		})
		return
	}
	respondSuccess(w, r, models.ReadinessStatus{Ready: true, Checks: checks})
}

func (h *Handler) pingStore(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()
	return h.store.Ping(ctx)
}
