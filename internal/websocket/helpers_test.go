// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package websocket

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/config"
	"github.com/tomtom215/inkwell/internal/docid"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/protocol"
	"github.com/tomtom215/inkwell/internal/store"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

const (
	testSecret  = "websocket_test_secret_with_more_than_32_chars"
	readTimeout = 2 * time.Second
)

// testConfig keeps timeouts short so failing tests end quickly.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AuthTimeout = 2 * time.Second
	cfg.PingInterval = time.Second
	cfg.PongTimeout = 3 * time.Second
	cfg.WriteTimeout = time.Second
	cfg.FrameRate = 10000
	cfg.FrameBurst = 10000
	return cfg
}

// harness runs a registry behind an httptest server that upgrades every
// request with a documentId query parameter.
type harness struct {
	t     *testing.T
	reg   *Registry
	store *store.Store
	jwt   *auth.JWTManager
	srv   *httptest.Server
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	s, err := store.Open(store.InMemoryConfig())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return newHarnessWithStore(t, cfg, s)
}

func newHarnessWithStore(t *testing.T, cfg Config, s *store.Store) *harness {
	t.Helper()
	h := newHarnessWithLog(t, cfg, s)
	h.store = s
	return h
}

// newHarnessWithLog runs the registry over an arbitrary update log; store
// helpers are unavailable.
func newHarnessWithLog(t *testing.T, cfg Config, log UpdateLog) *harness {
	t.Helper()
	m, err := auth.NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret, TokenTTL: time.Hour, Issuer: "inkwell"})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	h := &harness{t: t, jwt: m}
	h.reg = NewRegistry(cfg, log, auth.NewVerifier(m, nil))

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc, err := docid.Parse(r.URL.Query().Get("documentId"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if _, err := h.reg.Accept(ws, doc, r.RemoteAddr); err != nil {
			_ = ws.Close()
		}
	}))
	t.Cleanup(func() {
		h.reg.Shutdown()
		h.srv.Close()
	})
	return h
}

func (h *harness) token(username string) string {
	h.t.Helper()
	tok, err := h.jwt.GenerateToken(username, "editor")
	if err != nil {
		h.t.Fatalf("GenerateToken() error = %v", err)
	}
	return tok
}

// dial opens an unauthenticated socket.
func (h *harness) dial(doc string) *client {
	h.t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws?documentId=" + doc
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		h.t.Fatalf("Dial(%s) error = %v", doc, err)
	}
	h.t.Cleanup(func() { _ = ws.Close() })
	return &client{t: h.t, ws: ws}
}

// connect dials, authenticates as username and consumes the
// acknowledgment and the server's sync step 1.
func (h *harness) connect(username, doc string) *client {
	h.t.Helper()
	c := h.dial(doc)
	c.sendText(h.token(username))
	c.expectText(protocol.FrameAuthenticated)
	msg := c.readBinary()
	if msg.Type != protocol.MessageSync || msg.SyncType != protocol.SyncStep1 {
		h.t.Fatalf("first binary frame = %v/%v, want sync/step1", msg.Type, msg.SyncType)
	}
	return c
}

type client struct {
	t  *testing.T
	ws *websocket.Conn
}

func (c *client) sendText(s string) {
	c.t.Helper()
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(s)); err != nil {
		c.t.Fatalf("WriteMessage(text) error = %v", err)
	}
}

func (c *client) sendBinary(frame []byte) {
	c.t.Helper()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.t.Fatalf("WriteMessage(binary) error = %v", err)
	}
}

func (c *client) read() (int, []byte) {
	c.t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		c.t.Fatalf("ReadMessage() error = %v", err)
	}
	return mt, data
}

func (c *client) expectText(want string) {
	c.t.Helper()
	mt, data := c.read()
	if mt != websocket.TextMessage || string(data) != want {
		c.t.Fatalf("got frame %d %q, want text %q", mt, data, want)
	}
}

func (c *client) readBinary() protocol.Message {
	c.t.Helper()
	mt, data := c.read()
	if mt != websocket.BinaryMessage {
		c.t.Fatalf("got frame type %d %q, want binary", mt, data)
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		c.t.Fatalf("Decode() error = %v", err)
	}
	return msg
}

// expectClose reads until the server closes and checks the close code.
func (c *client) expectClose(code int) {
	c.t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		_, _, err := c.ws.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		if !errors.As(err, &ce) {
			c.t.Fatalf("ReadMessage() error = %v, want close %d", err, code)
		}
		if ce.Code != code {
			c.t.Fatalf("close code = %d (%q), want %d", ce.Code, ce.Text, code)
		}
		return
	}
}

// roundTrip sends a query-awareness frame and waits for the reply. Frames
// the room handled before the query are reflected in the log afterwards.
func (c *client) roundTrip() {
	c.t.Helper()
	c.sendBinary(protocol.EncodeQueryAwareness())
	for {
		if msg := c.readBinary(); msg.Type == protocol.MessageAwareness {
			return
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func mustParse(t *testing.T, s string) docid.ID {
	t.Helper()
	id, err := docid.Parse(s)
	if err != nil {
		t.Fatalf("docid.Parse(%q) error = %v", s, err)
	}
	return id
}

// fakeSocket is an in-memory Socket. Writes block while gate is non-nil
// and open.
type fakeSocket struct {
	mu        sync.Mutex
	written   [][]byte
	closeCode int
	gate      chan struct{}

	incoming  chan outbound
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{incoming: make(chan outbound, 16), closed: make(chan struct{})}
}

func (f *fakeSocket) SetReadLimit(int64) {}
func (f *fakeSocket) SetReadDeadline(time.Time) error { return nil }
func (f *fakeSocket) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeSocket) SetPongHandler(func(appData string) error) {}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case m := <-f.incoming:
		return m.messageType, m.data, nil
	case <-f.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
	}
}

func (f *fakeSocket) WriteMessage(_ int, data []byte) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-f.closed:
			return errFakeClosed
		}
	}
	f.mu.Lock()
	f.written = append(f.written, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeSocket) WriteControl(messageType int, data []byte, _ time.Time) error {
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		f.mu.Lock()
		f.closeCode = int(binary.BigEndian.Uint16(data[:2]))
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeSocket) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeSocket) code() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode
}

var errFakeClosed = errors.New("use of closed socket")

// stubAuth authenticates every token as id, or fails with err.
type stubAuth struct {
	id  auth.Identity
	err error
}

func (s stubAuth) Verify(ctx context.Context, _ string, _ docid.ID) (auth.Identity, error) {
	if err := ctx.Err(); err != nil {
		return auth.Identity{}, err
	}
	return s.id, s.err
}
