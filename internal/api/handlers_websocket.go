// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"net/http"
	"strings"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/inkwell/internal/docid"
	"github.com/tomtom215/inkwell/internal/logging"
)

// WebSocket upgrades a request to a document connection.
//
// Method: GET
// Path: configured WS path (default /ws)
//
// Query Parameters:
//   - documentId: owner:slug:document (required)
//
// The connection starts unauthenticated; the first text frame must carry a
// bearer token. Whether the document exists is not checked here.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	req := UpgradeRequest{DocumentID: r.URL.Query().Get("documentId")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr, nil)
		return
	}
	doc, err := docid.Parse(req.DocumentID)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
		return
	}

	if !isUpgradeRequest(r) {
		w.Header().Set("Upgrade", "websocket")
		respondError(w, http.StatusUpgradeRequired, ErrCodeUpgradeRequired, "Expected Upgrade: websocket", nil)
		return
	}
	if !h.upgrader.CheckOrigin(r) {
		respondError(w, http.StatusForbidden, ErrCodeOriginRejected, "Origin not allowed", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c, err := h.registry.Accept(conn, doc, r.RemoteAddr)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("document", doc.String()).Msg("Connection refused")
		msg := gorillaws.FormatCloseMessage(gorillaws.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(gorillaws.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	logging.Ctx(r.Context()).Debug().
		Str("conn_id", c.ID()).
		Str("document", doc.String()).
		Msg("WebSocket connection accepted")
}

// isUpgradeRequest reports whether the Upgrade header asks for websocket.
func isUpgradeRequest(r *http.Request) bool {
	for _, v := range strings.Split(r.Header.Get("Upgrade"), ",") {
		if strings.EqualFold(strings.TrimSpace(v), "websocket") {
			return true
		}
	}
	return false
}
