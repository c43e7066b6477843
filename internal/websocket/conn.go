// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package websocket

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/docid"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
	"github.com/tomtom215/inkwell/internal/protocol"
)

// Socket is the part of *websocket.Conn a connection uses.
type Socket interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// connIDCounter orders connections for deterministic broadcast order.
var connIDCounter atomic.Uint64

var errAuthTimeout = errors.New("no credential before the authentication timeout")

type outbound struct {
	messageType int
	data        []byte
}

// Conn is one WebSocket connection to a project actor. A reader goroutine
// feeds frames to the handshake or to the bound room; a writer goroutine
// owns all writes to the socket.
type Conn struct {
	id      uint64
	corrID  string
	doc     docid.ID
	remote  string
	ws      Socket
	actor   *Actor
	cfg     Config
	send    chan outbound
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
	opened  time.Time

	mu        sync.Mutex
	state     connState
	authTimer *time.Timer

	closeOnce    sync.Once
	done         chan struct{}
	closeCode    int
	closeText    string
	drainOnClose bool

	teardownOnce sync.Once
}

func newConn(a *Actor, ws Socket, doc docid.ID, remote string) *Conn {
	cfg := a.registry.cfg
	corrID := logging.GenerateCorrelationID()

	logger := logging.WithComponent("websocket").With().
		Str("document", doc.String()).
		Str("remote_addr", remote).
		Logger()
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.ContextWithLogger(ctx, logger)
	ctx = logging.ContextWithCorrelationID(ctx, corrID)

	return &Conn{
		id:      connIDCounter.Add(1),
		corrID:  corrID,
		doc:     doc,
		remote:  remote,
		ws:      ws,
		actor:   a,
		cfg:     cfg,
		send:    make(chan outbound, cfg.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(cfg.FrameRate), cfg.FrameBurst),
		ctx:     ctx,
		cancel:  cancel,
		opened:  time.Now(),
		state:   &stateUnauthenticated{},
		done:    make(chan struct{}),
	}
}

// ID returns the connection's correlation ID.
func (c *Conn) ID() string {
	return c.corrID
}

// Document returns the document the connection was opened for.
func (c *Conn) Document() docid.ID {
	return c.doc
}

// State returns the handshake state name.
func (c *Conn) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.stateName()
}

// Done is closed once the connection starts shutting down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) start() {
	c.mu.Lock()
	c.authTimer = time.AfterFunc(c.cfg.AuthTimeout, func() {
		c.deny(protocol.ReasonInvalidToken, errAuthTimeout, "")
	})
	c.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (c *Conn) stopAuthTimerLocked() {
	if c.authTimer != nil {
		c.authTimer.Stop()
		c.authTimer = nil
	}
}

// readPump reads frames in arrival order until the socket fails or the
// connection is closed. Frames of one connection are handed on by this
// goroutine only, so queued and live frames reach the room in order.
func (c *Conn) readPump() {
	defer c.teardown()

	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout)); err != nil {
		logging.Ctx(c.ctx).Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		if err := c.limiter.Wait(c.ctx); err != nil {
			return
		}

		keep := true
		switch messageType {
		case websocket.TextMessage:
			keep = c.handleText(string(data))
		case websocket.BinaryMessage:
			keep = c.handleBinary(data)
		}
		if !keep {
			return
		}
	}
}

func (c *Conn) handleReadError(err error) {
	if errors.Is(err, websocket.ErrReadLimit) {
		logging.Ctx(c.ctx).Warn().Int64("limit", c.cfg.MaxMessageSize).Msg("Frame exceeds read limit")
		c.shutdown(protocol.CloseMessageTooBig, "message too big", false)
		return
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		logging.Ctx(c.ctx).Debug().Err(err).Msg("Unexpected websocket close")
	}
}

// handleText treats the first text frame as the bearer credential. Text
// frames after the handshake are ignored.
func (c *Conn) handleText(frame string) bool {
	c.mu.Lock()
	_, pending := c.state.(*stateUnauthenticated)
	c.mu.Unlock()
	if !pending {
		logging.Ctx(c.ctx).Debug().Msg("Ignoring text frame on authenticated connection")
		return true
	}
	return c.authenticate(frame)
}

func (c *Conn) authenticate(token string) bool {
	reg := c.actor.registry
	id, err := reg.verifier.Verify(c.ctx, token, c.doc)
	if err != nil {
		c.deny(auth.DenyReasonFor(err), err, id.Username)
		return false
	}

	room, err := c.actor.acquireRoom(c.doc)
	if err != nil {
		c.deny(protocol.ReasonError, err, id.Username)
		return false
	}

	c.mu.Lock()
	st, ok := c.state.(*stateUnauthenticated)
	if !ok {
		// Timed out or closed while the token was being verified.
		c.mu.Unlock()
		c.actor.releaseRoom(room)
		return false
	}
	queued := st.queue
	c.state = &stateAuthenticated{user: id, room: room}
	c.stopAuthTimerLocked()
	c.mu.Unlock()

	c.enqueue(outbound{messageType: websocket.TextMessage, data: []byte(protocol.FrameAuthenticated)})
	if !room.join(c, queued) {
		c.shutdown(protocol.CloseInternalError, "document unavailable", false)
		return false
	}

	metrics.RecordHandshake("authenticated", time.Since(c.opened))
	metrics.PendingFrames.Observe(float64(len(queued)))
	reg.security.LogHandshakeSuccess(id.Username, c.doc.String(), c.corrID, c.remote)
	logging.Ctx(c.ctx).Info().
		Str("user", logging.SanitizeUsername(id.Username)).
		Int("queued_frames", len(queued)).
		Msg("Connection authenticated")
	return true
}

// deny rejects an unauthenticated connection with an access-denied frame
// followed by the close code for reason.
func (c *Conn) deny(reason protocol.DenyReason, err error, username string) {
	c.mu.Lock()
	if _, ok := c.state.(*stateUnauthenticated); !ok {
		c.mu.Unlock()
		return
	}
	c.state = stateClosed{}
	c.stopAuthTimerLocked()
	c.mu.Unlock()

	c.enqueue(outbound{messageType: websocket.TextMessage, data: []byte(reason.Frame())})
	c.shutdown(reason.CloseCode(), string(reason), true)

	metrics.RecordHandshake(string(reason), time.Since(c.opened))
	c.actor.registry.security.LogHandshakeDenied(username, c.doc.String(), c.corrID, c.remote, string(reason), err)
}

// handleBinary queues frames before the handshake and forwards them to the
// room after it.
func (c *Conn) handleBinary(frame []byte) bool {
	c.mu.Lock()
	switch st := c.state.(type) {
	case *stateUnauthenticated:
		if len(st.queue) >= c.cfg.MaxPendingFrames {
			c.state = stateClosed{}
			c.stopAuthTimerLocked()
			c.mu.Unlock()
			logging.Ctx(c.ctx).Warn().Int("limit", c.cfg.MaxPendingFrames).Msg("Too many frames before authentication")
			c.shutdown(protocol.ClosePolicyViolation, "too many frames before authentication", false)
			return false
		}
		st.queue = append(st.queue, frame)
		c.mu.Unlock()
		return true
	case *stateAuthenticated:
		room := st.room
		c.mu.Unlock()
		return room.frame(c, frame)
	default:
		c.mu.Unlock()
		return false
	}
}

// enqueue hands a frame to the writer without blocking. A full buffer marks
// the peer as slow and closes it.
func (c *Conn) enqueue(f outbound) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- f:
		return true
	default:
		metrics.SlowPeerDrops.Inc()
		logging.Ctx(c.ctx).Warn().Int("buffer", cap(c.send)).Msg("Send buffer full, dropping slow peer")
		c.shutdown(websocket.CloseTryAgainLater, "slow consumer", false)
		return false
	}
}

func (c *Conn) sendBinary(frame []byte) bool {
	return c.enqueue(outbound{messageType: websocket.BinaryMessage, data: frame})
}

// shutdown starts closing the connection. The writer sends a close frame
// with code, after flushing queued frames when drain is set, and closes the
// socket, which ends the reader.
func (c *Conn) shutdown(code int, text string, drain bool) {
	c.closeOnce.Do(func() {
		c.closeCode, c.closeText, c.drainOnClose = code, text, drain
		if code != websocket.CloseNormalClosure && code != websocket.CloseAbnormalClosure {
			metrics.ConnectionCloses.WithLabelValues(strconv.Itoa(code)).Inc()
		}
		close(c.done)
		c.cancel()
	})
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close() // Explicitly ignore error - best-effort cleanup
	}()

	for {
		select {
		case f := <-c.send:
			if err := c.write(f); err != nil {
				logging.Ctx(c.ctx).Debug().Err(err).Msg("Write failed")
				c.shutdown(websocket.CloseAbnormalClosure, "", false)
				return
			}

		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.shutdown(websocket.CloseAbnormalClosure, "", false)
				return
			}

		case <-c.done:
			if c.drainOnClose {
				c.drain()
			}
			if c.closeCode != websocket.CloseAbnormalClosure {
				msg := websocket.FormatCloseMessage(c.closeCode, c.closeText)
				_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
			}
			return
		}
	}
}

func (c *Conn) drain() {
	for {
		select {
		case f := <-c.send:
			if c.write(f) != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(f outbound) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(f.messageType, f.data); err != nil {
		return err
	}
	metrics.FramesSent.Inc()
	return nil
}

// teardown unbinds the connection from its room, which removes and
// broadcasts its awareness states, and unregisters it from the actor.
// It runs once, from the reader.
func (c *Conn) teardown() {
	c.teardownOnce.Do(func() {
		c.shutdown(websocket.CloseNormalClosure, "", false)

		c.mu.Lock()
		prev := c.state
		c.state = stateClosed{}
		c.stopAuthTimerLocked()
		c.mu.Unlock()

		if st, ok := prev.(*stateAuthenticated); ok {
			st.room.leave(c)
			c.actor.releaseRoom(st.room)
		}
		c.actor.removeConn(c)
		metrics.TrackConnection(false)

		logging.Ctx(c.ctx).Debug().
			Str("state", prev.stateName()).
			Dur("lifetime", time.Since(c.opened)).
			Msg("Connection closed")
	})
}
