// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/websocket"
)

// ProjectStatsResponse describes the live state of one project.
type ProjectStatsResponse struct {
	Live bool `json:"live"`
	websocket.ActorStats
}

// ProjectStats returns the live connections and documents of a project.
// Only the project owner may read them.
//
// Method: GET
// Path: /api/v1/projects/{owner}/{slug}/stats
func (h *Handler) ProjectStats(w http.ResponseWriter, r *http.Request) {
	req := ProjectRequest{
		Owner: chi.URLParam(r, "owner"),
		Slug:  chi.URLParam(r, "slug"),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr, nil)
		return
	}

	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required", nil)
		return
	}
	if claims.Username != req.Owner {
		respondError(w, http.StatusForbidden, ErrCodeForbidden, "Not the project owner", nil)
		return
	}

	stats, live := h.registry.ProjectStats(req.Key())
	if !live {
		stats = websocket.ActorStats{Project: req.Key(), Rooms: []websocket.RoomStats{}}
	}
	respondSuccess(w, r, ProjectStatsResponse{Live: live, ActorStats: stats})
}

// StoreStats returns the update store counters.
//
// Method: GET
// Path: /api/v1/store/stats
func (h *Handler) StoreStats(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, h.store.Stats())
}
