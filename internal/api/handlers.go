// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"context"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/inkwell/internal/config"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/store"
	"github.com/tomtom215/inkwell/internal/websocket"
)

// Version is reported by the health endpoint. Overridden at build time.
var Version = "dev"

// UpdateStore is the part of the update store the HTTP layer needs.
type UpdateStore interface {
	Ping(ctx context.Context) error
	Stats() store.Stats
}

// Handler handles all HTTP API requests
type Handler struct {
	store     UpdateStore
	registry  *websocket.Registry
	config    *config.Config
	startTime time.Time
	upgrader  gorillaws.Upgrader
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg *config.Config, st UpdateStore, registry *websocket.Registry) *Handler {
	h := &Handler{
		store:     st,
		registry:  registry,
		config:    cfg,
		startTime: time.Now(),
	}
	h.upgrader = h.getUpgrader()
	return h
}

// getUpgrader returns a WebSocket upgrader bound to the configured
// handshake timeout and origin policy.
func (h *Handler) getUpgrader() gorillaws.Upgrader {
	return gorillaws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: h.config.Server.HandshakeTimeout,
		CheckOrigin:      h.checkWebSocketOrigin,
	}
}

// checkWebSocketOrigin validates the Origin header against the configured
// CORS origins. A missing Origin is rejected unless "*" is allowed.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" {
			return true
		}
		if origin != "" && origin == allowed {
			return true
		}
	}
	logging.Ctx(r.Context()).Warn().
		Str("origin", sanitizeLogValue(origin)).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection rejected: origin not allowed")
	return false
}
