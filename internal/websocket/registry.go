// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/docid"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
)

// ShutdownReason identifies why the registry is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// ErrRegistryClosed is returned by Accept after Shutdown.
var ErrRegistryClosed = errors.New("actor registry is closed")

// Authenticator verifies the handshake credential of a connection.
// *auth.Verifier implements it.
type Authenticator interface {
	Verify(ctx context.Context, token string, doc docid.ID) (auth.Identity, error)
}

// RegistryStats summarises every live actor.
type RegistryStats struct {
	Actors      int `json:"actors"`
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// Registry maps project keys to their actors, creating them on first use.
type Registry struct {
	cfg      Config
	log      UpdateLog
	verifier Authenticator
	security *logging.SecurityLogger

	mu     sync.Mutex
	actors map[string]*Actor
	closed bool

	// frameHook is copied into every new room.
	frameHook func(c *Conn, frame []byte)
}

// NewRegistry creates an empty registry. Zero fields of cfg take their
// defaults.
func NewRegistry(cfg Config, log UpdateLog, verifier Authenticator) *Registry {
	return &Registry{
		cfg:      cfg.withDefaults(),
		log:      log,
		verifier: verifier,
		security: logging.NewSecurityLogger(),
		actors:   make(map[string]*Actor),
	}
}

// Get returns the actor for a project key, creating it if needed. It
// returns nil once the registry is shut down.
func (r *Registry) Get(key string) *Actor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	a, ok := r.actors[key]
	if !ok {
		a = newActor(r, key)
		r.actors[key] = a
	}
	return a
}

// Lookup returns the actor for a project key without creating it.
func (r *Registry) Lookup(key string) (*Actor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[key]
	return a, ok
}

// Accept hands an upgraded socket to the actor of doc's project. The
// connection starts unauthenticated; Accept never fails because a document
// does not exist.
func (r *Registry) Accept(ws Socket, doc docid.ID, remote string) (*Conn, error) {
	// An actor can be closed by the idle sweep between Get and accept;
	// the second attempt gets a fresh one.
	for attempt := 0; attempt < 2; attempt++ {
		a := r.Get(doc.ProjectKey())
		if a == nil {
			return nil, ErrRegistryClosed
		}
		c, err := a.accept(ws, doc, remote)
		if errors.Is(err, errActorClosed) {
			continue
		}
		return c, err
	}
	return nil, errActorClosed
}

// Remove stops a project's actor, closing its connections. It reports
// whether the actor existed.
func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	a, ok := r.actors[key]
	delete(r.actors, key)
	r.mu.Unlock()
	if !ok {
		return false
	}
	a.shutdown()
	return true
}

// RunWithContext runs the idle sweep until ctx is canceled, then shuts the
// registry down. It is designed for use with suture supervision.
func (r *Registry) RunWithContext(ctx context.Context) error {
	r.mu.Lock()
	r.closed = false
	r.mu.Unlock()

	var sweep <-chan time.Time
	if r.cfg.ActorIdleTTL > 0 {
		interval := r.cfg.ActorIdleTTL / 2
		if interval < time.Second {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			closed := r.Shutdown()
			logging.Info().
				Str("component", "actor-registry").
				Str("reason", string(getShutdownReason(ctx))).
				Int("connections_closed", closed).
				Msg("Actor registry stopped")
			return ctx.Err()
		case now := <-sweep:
			r.sweep(now)
		}
	}
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sweep stops actors that have had no connections for ActorIdleTTL.
func (r *Registry) sweep(now time.Time) int {
	r.mu.Lock()
	var idle []*Actor
	for key, a := range r.actors {
		if a.closeIfIdle(now, r.cfg.ActorIdleTTL) {
			idle = append(idle, a)
			delete(r.actors, key)
		}
	}
	r.mu.Unlock()

	for _, a := range idle {
		a.shutdown()
		metrics.RoomEvictions.WithLabelValues("actor").Inc()
	}
	if len(idle) > 0 {
		logging.Debug().Str("component", "actor-registry").Int("evicted", len(idle)).Msg("Evicted idle project actors")
	}
	return len(idle)
}

// Shutdown stops every actor and refuses new connections until the
// registry runs again. It returns the number of connections closed.
func (r *Registry) Shutdown() int {
	r.mu.Lock()
	r.closed = true
	actors := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		actors = append(actors, a)
	}
	r.actors = make(map[string]*Actor)
	r.mu.Unlock()

	closed := 0
	for _, a := range actors {
		closed += a.shutdown()
	}
	return closed
}

// Stats returns totals across every actor.
func (r *Registry) Stats() RegistryStats {
	r.mu.Lock()
	actors := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		actors = append(actors, a)
	}
	r.mu.Unlock()

	stats := RegistryStats{Actors: len(actors)}
	for _, a := range actors {
		a.mu.Lock()
		stats.Connections += len(a.conns)
		stats.Rooms += len(a.rooms)
		a.mu.Unlock()
	}
	return stats
}

// ProjectStats returns the stats of one project's actor.
func (r *Registry) ProjectStats(key string) (ActorStats, bool) {
	a, ok := r.Lookup(key)
	if !ok {
		return ActorStats{}, false
	}
	return a.Stats(), true
}

// Projects lists the live project keys in order.
func (r *Registry) Projects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.actors))
	for key := range r.actors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
