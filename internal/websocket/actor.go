// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package websocket

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/inkwell/internal/docid"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
)

var errActorClosed = errors.New("project actor closed")

// ActorStats describes one project actor.
type ActorStats struct {
	Project     string      `json:"project"`
	Connections int         `json:"connections"`
	Rooms       []RoomStats `json:"rooms"`
}

// Actor multiplexes every connection and document of one project
// (owner:slug). Its room and connection maps are the only state shared
// between connections; each document is mutated by its own room goroutine.
type Actor struct {
	key      string
	registry *Registry

	mu        sync.Mutex
	rooms     map[string]*Room
	conns     map[*Conn]struct{}
	idleSince time.Time
	closed    bool
}

func newActor(r *Registry, key string) *Actor {
	metrics.Actors.Inc()
	return &Actor{
		key:       key,
		registry:  r,
		rooms:     make(map[string]*Room),
		conns:     make(map[*Conn]struct{}),
		idleSince: time.Now(),
	}
}

// Key returns the project key the actor serves.
func (a *Actor) Key() string {
	return a.key
}

// accept registers an unauthenticated connection and starts its pumps.
// No document state is touched until the connection authenticates.
func (a *Actor) accept(ws Socket, doc docid.ID, remote string) (*Conn, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, errActorClosed
	}
	c := newConn(a, ws, doc, remote)
	a.conns[c] = struct{}{}
	a.idleSince = time.Time{}
	a.mu.Unlock()

	metrics.TrackConnection(true)
	c.start()
	return c, nil
}

func (a *Actor) removeConn(c *Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conns, c)
	if len(a.conns) == 0 && !a.closed {
		a.idleSince = time.Now()
	}
}

// acquireRoom returns the live room for doc, starting it (and its replay)
// when the document is not yet in memory. The caller must releaseRoom.
func (a *Actor) acquireRoom(doc docid.ID) (*Room, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, errActorClosed
	}

	key := doc.String()
	room, ok := a.rooms[key]
	if !ok {
		room = newRoom(a, doc)
		a.rooms[key] = room
		room.start()
	}
	room.refs++
	return room, nil
}

func (a *Actor) releaseRoom(room *Room) {
	a.mu.Lock()
	room.refs--
	a.mu.Unlock()
}

// evictRoom removes an idle room. It fails while a connection holds the
// room or the document still has deferred writes.
func (a *Actor) evictRoom(room *Room) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rooms[room.key] != room || room.refs > 0 {
		return false
	}
	if room.log.HasDeferred(room.key) {
		return false
	}
	delete(a.rooms, room.key)
	return true
}

// closeIfIdle marks the actor closed when it has had no connections for ttl.
func (a *Actor) closeIfIdle(now time.Time, ttl time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || len(a.conns) > 0 || a.idleSince.IsZero() {
		return false
	}
	if now.Sub(a.idleSince) < ttl {
		return false
	}
	a.closed = true
	return true
}

// shutdown closes every connection and stops every room. It returns the
// number of connections closed.
func (a *Actor) shutdown() int {
	a.mu.Lock()
	a.closed = true
	conns := make([]*Conn, 0, len(a.conns))
	for c := range a.conns {
		conns = append(conns, c)
	}
	rooms := make([]*Room, 0, len(a.rooms))
	for _, room := range a.rooms {
		rooms = append(rooms, room)
	}
	a.rooms = make(map[string]*Room)
	a.mu.Unlock()

	for _, c := range conns {
		c.shutdown(websocket.CloseGoingAway, "server shutting down", false)
	}
	for _, room := range rooms {
		room.stop()
	}
	metrics.Actors.Dec()

	logging.Debug().
		Str("component", "actor").
		Str("project", a.key).
		Int("connections", len(conns)).
		Int("rooms", len(rooms)).
		Msg("Project actor stopped")
	return len(conns)
}

// Stats returns the actor's connection count and its rooms ordered by
// document.
func (a *Actor) Stats() ActorStats {
	a.mu.Lock()
	stats := ActorStats{Project: a.key, Connections: len(a.conns)}
	rooms := make([]*Room, 0, len(a.rooms))
	for _, room := range a.rooms {
		rooms = append(rooms, room)
	}
	a.mu.Unlock()

	stats.Rooms = make([]RoomStats, 0, len(rooms))
	for _, room := range rooms {
		stats.Rooms = append(stats.Rooms, room.Stats())
	}
	sort.Slice(stats.Rooms, func(i, j int) bool {
		return stats.Rooms[i].Document < stats.Rooms[j].Document
	})
	return stats
}
