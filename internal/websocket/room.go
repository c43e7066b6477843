// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package websocket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/inkwell/internal/awareness"
	"github.com/tomtom215/inkwell/internal/crdt"
	"github.com/tomtom215/inkwell/internal/docid"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
	"github.com/tomtom215/inkwell/internal/protocol"
	"github.com/tomtom215/inkwell/internal/store"
)

// UpdateLog is the durable fragment log a room replays from and appends to.
// *store.Store implements it.
type UpdateLog interface {
	Append(ctx context.Context, doc string, fragment []byte) error
	LoadAll(ctx context.Context, doc string) ([][]byte, error)
	Compact(ctx context.Context, doc string, snapshot []byte) (int, error)
	HasDeferred(doc string) bool
}

const roomMailboxSize = 1024

type roomOp int

const (
	opJoin roomOp = iota
	opFrame
	opLeave
)

type roomMsg struct {
	op     roomOp
	conn   *Conn
	frames [][]byte
}

// peer is a subscriber of a room and the awareness clients it controls.
type peer struct {
	controlled map[uint64]struct{}
}

// RoomStats is a point-in-time view of one document.
type RoomStats struct {
	Document    string `json:"document"`
	Subscribers int    `json:"subscribers"`
	Fragments   int    `json:"fragments"`
	Deferred    bool   `json:"deferred"`
}

// Room owns the replicated state of one document. A single goroutine
// processes its mailbox, so document and awareness state are only mutated
// from one call stack.
type Room struct {
	doc   docid.ID
	key   string
	actor *Actor
	log   UpdateLog
	cfg   Config

	mailbox  chan roomMsg
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc

	ydoc  *crdt.Doc
	aware *awareness.Awareness
	peers map[*Conn]*peer
	idle  *time.Timer

	fragments  int
	compactAt  int
	loadFailed bool

	subscribers   atomic.Int64
	fragmentCount atomic.Int64

	// refs counts connections holding the room. Guarded by actor.mu.
	refs int

	// frameHook runs before each frame is handled. Tests use it to inject
	// failures.
	frameHook func(c *Conn, frame []byte)
}

func newRoom(a *Actor, doc docid.ID) *Room {
	cfg := a.registry.cfg
	logger := logging.WithComponent("room").With().Str("document", doc.String()).Logger()
	ctx, cancel := context.WithCancel(logging.ContextWithLogger(context.Background(), logger))

	r := &Room{
		doc:       doc,
		key:       doc.String(),
		actor:     a,
		log:       a.registry.log,
		cfg:       cfg,
		mailbox:   make(chan roomMsg, roomMailboxSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		ydoc:      crdt.NewDoc(0),
		aware:     awareness.New(),
		peers:     make(map[*Conn]*peer),
		compactAt: cfg.CompactThreshold,
		frameHook: a.registry.frameHook,
	}
	return r
}

func (r *Room) logger() *zerolog.Logger {
	return logging.Ctx(r.ctx)
}

func (r *Room) start() {
	metrics.Rooms.Inc()
	go r.run()
}

// post delivers msg unless the room has stopped.
func (r *Room) post(msg roomMsg) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.mailbox <- msg:
		return true
	case <-r.done:
		return false
	}
}

// join subscribes c and replays the frames it sent before authenticating.
func (r *Room) join(c *Conn, queued [][]byte) bool {
	return r.post(roomMsg{op: opJoin, conn: c, frames: queued})
}

func (r *Room) frame(c *Conn, frame []byte) bool {
	return r.post(roomMsg{op: opFrame, conn: c, frames: [][]byte{frame}})
}

func (r *Room) leave(c *Conn) {
	r.post(roomMsg{op: opLeave, conn: c})
}

// stop ends the room goroutine and waits for it.
func (r *Room) stop() {
	r.stopOnce.Do(func() { close(r.quit) })
	<-r.done
}

// Stats returns counters safe to read from any goroutine.
func (r *Room) Stats() RoomStats {
	return RoomStats{
		Document:    r.key,
		Subscribers: int(r.subscribers.Load()),
		Fragments:   int(r.fragmentCount.Load()),
		Deferred:    r.log.HasDeferred(r.key),
	}
}

func (r *Room) run() {
	defer func() {
		r.stopIdle()
		r.cancel()
		metrics.Rooms.Dec()
		close(r.done)
	}()

	r.replay()
	r.armIdle()

	for {
		var idle <-chan time.Time
		if r.idle != nil {
			idle = r.idle.C
		}

		select {
		case <-r.quit:
			return

		case msg := <-r.mailbox:
			r.dispatch(msg)

		case <-idle:
			r.idle = nil
			if r.actor.evictRoom(r) {
				metrics.RoomEvictions.WithLabelValues("room").Inc()
				r.logger().Debug().Msg("Evicted idle document")
				r.drainMailbox()
				return
			}
			r.armIdle()
		}
	}
}

// drainMailbox discards messages posted before eviction; their connections
// observe the closed room on their next post.
func (r *Room) drainMailbox() {
	for {
		select {
		case msg := <-r.mailbox:
			if msg.op == opJoin {
				// acquireRoom holds a reference, so no join can be pending
				// once evictRoom succeeded.
				r.logger().Warn().Str("conn", msg.conn.corrID).Msg("Join dropped by evicted room")
			}
		default:
			return
		}
	}
}

func (r *Room) dispatch(msg roomMsg) {
	switch msg.op {
	case opJoin:
		r.bind(msg.conn, msg.frames)
	case opFrame:
		if _, ok := r.peers[msg.conn]; ok {
			r.handleFrame(msg.conn, msg.frames[0])
		}
	case opLeave:
		r.unbind(msg.conn)
	}
}

// replay rebuilds the document from the update log.
func (r *Room) replay() {
	start := time.Now()
	frags, err := r.log.LoadAll(r.ctx, r.key)
	if err != nil {
		// Serving an empty document is preferred over refusing the room.
		// Compaction stays off so the stored log is never replaced by it.
		r.loadFailed = true
		r.logger().Error().Err(err).Msg("Failed to load update log")
		return
	}

	skipped := 0
	for i, frag := range frags {
		if _, err := r.ydoc.ApplyUpdate(frag); err != nil {
			skipped++
			r.logger().Error().Err(err).Int("fragment", i).Msg("Skipping unreadable fragment")
		}
	}
	r.fragments = len(frags)
	r.fragmentCount.Store(int64(r.fragments))
	metrics.RoomReplayDuration.Observe(time.Since(start).Seconds())

	r.logger().Debug().
		Int("fragments", len(frags)).
		Int("skipped", skipped).
		Dur("duration", time.Since(start)).
		Msg("Replayed document")

	if skipped > 0 {
		r.loadFailed = true
		return
	}
	r.maybeCompact()
}

// bind subscribes c, sends the initial sync exchange and replays queued
// frames in arrival order.
func (r *Room) bind(c *Conn, queued [][]byte) {
	if _, ok := r.peers[c]; ok {
		return
	}
	r.peers[c] = &peer{controlled: make(map[uint64]struct{})}
	r.subscribers.Store(int64(len(r.peers)))
	r.stopIdle()

	c.sendBinary(protocol.EncodeSync(protocol.SyncStep1, r.ydoc.EncodeStateVector()))
	if r.aware.Len() > 0 {
		c.sendBinary(protocol.EncodeAwareness(r.aware.EncodeAll()))
	}

	for _, frame := range queued {
		if _, ok := r.peers[c]; !ok {
			return
		}
		r.handleFrame(c, frame)
	}
}

// unbind removes c and broadcasts the removal of its awareness states.
func (r *Room) unbind(c *Conn) {
	p, ok := r.peers[c]
	if !ok {
		return
	}
	delete(r.peers, c)
	r.subscribers.Store(int64(len(r.peers)))

	if len(p.controlled) > 0 {
		clients := make([]uint64, 0, len(p.controlled))
		for id := range p.controlled {
			clients = append(clients, id)
		}
		sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })
		if update := r.aware.Remove(clients); update != nil {
			r.broadcast(c, protocol.EncodeAwareness(update), "awareness")
		}
	}

	if len(r.peers) == 0 {
		r.armIdle()
	}
}

// handleFrame applies one binary frame from c. A panic closes c only.
func (r *Room) handleFrame(c *Conn, frame []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.FramePanics.Inc()
			r.logger().Error().
				Str("conn", c.corrID).
				Interface("panic", rec).
				Msg("Recovered panic while handling frame")
			r.unbind(c)
			c.shutdown(protocol.CloseInternalError, "internal error", false)
		}
	}()

	if r.frameHook != nil {
		r.frameHook(c, frame)
	}

	msg, err := protocol.Decode(frame)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownMessage) {
			metrics.FramesReceived.WithLabelValues("unknown").Inc()
			return
		}
		r.reject(c, err)
		return
	}
	metrics.FramesReceived.WithLabelValues(msg.Type.String()).Inc()

	switch msg.Type {
	case protocol.MessageSync:
		r.handleSync(c, msg)
	case protocol.MessageAwareness:
		r.handleAwareness(c, msg.Payload)
	case protocol.MessageQueryAwareness:
		c.sendBinary(protocol.EncodeAwareness(r.aware.EncodeAll()))
	case protocol.MessageAuth:
		// Permission messages are not used; authentication is the text handshake.
	}
}

func (r *Room) handleSync(c *Conn, msg protocol.Message) {
	switch msg.SyncType {
	case protocol.SyncStep1:
		update, err := r.ydoc.EncodeStateAsUpdate(msg.Payload)
		if err != nil {
			r.reject(c, err)
			return
		}
		c.sendBinary(protocol.EncodeSync(protocol.SyncStep2, update))

	case protocol.SyncStep2, protocol.SyncUpdate:
		res, err := r.ydoc.Apply(msg.Payload)
		if err != nil {
			r.reject(c, err)
			return
		}
		// Held elements are not in the delta; the whole update is logged
		// so a replay holds them too.
		switch {
		case res.Held > 0:
			r.persist(msg.Payload)
		case res.Delta != nil:
			r.persist(res.Delta)
		}
		if res.Delta != nil {
			r.broadcast(c, protocol.EncodeSync(protocol.SyncUpdate, res.Delta), "update")
		}
	}
}

func (r *Room) handleAwareness(c *Conn, update []byte) {
	change, delta, err := r.aware.ApplyUpdate(update)
	if err != nil {
		r.reject(c, err)
		return
	}
	if change.Empty() {
		return
	}

	p := r.peers[c]
	for _, id := range change.Announced() {
		p.controlled[id] = struct{}{}
	}
	for _, id := range change.Removed {
		delete(p.controlled, id)
	}
	r.broadcast(c, protocol.EncodeAwareness(delta), "awareness")
}

// reject closes a connection that sent an undecodable frame.
func (r *Room) reject(c *Conn, err error) {
	metrics.FramesReceived.WithLabelValues("invalid").Inc()
	r.logger().Warn().Err(err).Str("conn", c.corrID).Msg("Rejecting malformed frame")
	r.unbind(c)
	c.shutdown(protocol.ClosePolicyViolation, "malformed message", false)
}

// broadcast sends frame to every peer except from, in connection order.
func (r *Room) broadcast(from *Conn, frame []byte, kind string) {
	targets := make([]*Conn, 0, len(r.peers))
	for c := range r.peers {
		if c != from {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	for _, c := range targets {
		c.sendBinary(frame)
	}
	metrics.Broadcasts.WithLabelValues(kind).Inc()
}

// persist appends a fragment. A deferred write is retried by the store;
// any other failure is logged and the in-memory state stays authoritative.
func (r *Room) persist(fragment []byte) {
	if err := r.log.Append(r.ctx, r.key, fragment); err != nil {
		if !errors.Is(err, store.ErrDeferred) {
			r.logger().Error().Err(err).Msg("Failed to persist update")
			return
		}
		r.logger().Warn().Err(err).Msg("Update persistence deferred")
	}
	r.fragments++
	r.fragmentCount.Store(int64(r.fragments))
	r.maybeCompact()
}

// maybeCompact replaces the log with a snapshot once it reaches the
// compaction threshold.
func (r *Room) maybeCompact() {
	if r.compactAt <= 0 || r.loadFailed || r.fragments < r.compactAt {
		return
	}
	if r.log.HasDeferred(r.key) {
		return
	}

	snapshot, err := r.ydoc.EncodeStateAsUpdate(nil)
	if err == nil {
		var removed int
		removed, err = r.log.Compact(r.ctx, r.key, snapshot)
		if err == nil {
			r.logger().Info().Int("removed", removed).Msg("Compacted update log")
			r.fragments = 1
			r.compactAt = r.cfg.CompactThreshold
			r.fragmentCount.Store(1)
			return
		}
	}
	r.compactAt = r.fragments + r.cfg.CompactThreshold
	r.logger().Warn().Err(fmt.Errorf("compact %s: %w", r.key, err)).Msg("Compaction failed")
}

func (r *Room) armIdle() {
	if r.cfg.DocumentIdleTTL <= 0 || len(r.peers) > 0 || r.idle != nil {
		return
	}
	r.idle = time.NewTimer(r.cfg.DocumentIdleTTL)
}

func (r *Room) stopIdle() {
	if r.idle != nil {
		r.idle.Stop()
		r.idle = nil
	}
}
