// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package websocket

import (
	"github.com/tomtom215/inkwell/internal/auth"
)

// connState is the handshake state of a connection. Only the three variants
// below implement it; transitions happen in Conn methods holding Conn.mu.
//
//	unauthenticated --verify ok--> authenticated --teardown--> closed
//	unauthenticated --deny/overflow/timeout/teardown--> closed
type connState interface {
	stateName() string
}

// stateUnauthenticated buffers binary frames until the handshake completes.
type stateUnauthenticated struct {
	queue [][]byte
}

// stateAuthenticated is bound to the room of the connection's document.
type stateAuthenticated struct {
	user auth.Identity
	room *Room
}

type stateClosed struct{}

func (*stateUnauthenticated) stateName() string { return "unauthenticated" }
func (*stateAuthenticated) stateName() string   { return "authenticated" }
func (stateClosed) stateName() string           { return "closed" }
