// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/config"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/protocol"
	"github.com/tomtom215/inkwell/internal/store"
	"github.com/tomtom215/inkwell/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

const testSecret = "api_test_secret_with_more_than_32_characters"

type fakeStore struct {
	pingErr error
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }
func (f *fakeStore) Stats() store.Stats         { return store.Stats{Appends: 7, Breaker: "closed"} }

// memLog keeps fragments in memory for the registry.
type memLog struct{}

func (memLog) Append(context.Context, string, []byte) error         { return nil }
func (memLog) LoadAll(context.Context, string) ([][]byte, error)    { return nil, nil }
func (memLog) Compact(context.Context, string, []byte) (int, error) { return 0, nil }
func (memLog) HasDeferred(string) bool                              { return false }

type testServer struct {
	srv   *httptest.Server
	jwt   *auth.JWTManager
	reg   *websocket.Registry
	store *fakeStore
}

func testAPIConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			WSPath:           "/ws",
			HandshakeTimeout: 5 * time.Second,
		},
		Security: config.SecurityConfig{
			JWTSecret:       testSecret,
			TokenTTL:        time.Hour,
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"https://app.example.com"},
		},
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := testAPIConfig()
	m, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	wsCfg := websocket.DefaultConfig()
	wsCfg.AuthTimeout = 2 * time.Second
	reg := websocket.NewRegistry(wsCfg, memLog{}, auth.NewVerifier(m, nil))
	st := &fakeStore{}

	handler := NewHandler(cfg, st, reg)
	router := NewRouter(handler, NewChiMiddleware(ChiMiddlewareConfigFromSecurity(&cfg.Security)), m)
	srv := httptest.NewServer(router.Setup())
	t.Cleanup(func() {
		reg.Shutdown()
		srv.Close()
	})
	return &testServer{srv: srv, jwt: m, reg: reg, store: st}
}

func (ts *testServer) get(t *testing.T, path string, header http.Header) (*http.Response, models.APIResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	defer resp.Body.Close()

	var body models.APIResponse
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			t.Fatalf("GET %s: body %q is not an API response: %v", path, data, err)
		}
	}
	return resp, body
}

func (ts *testServer) bearer(t *testing.T, username string) http.Header {
	t.Helper()
	tok, err := ts.jwt.GenerateToken(username, "editor")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return http.Header{"Authorization": {"Bearer " + tok}}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.get(t, "/api/v1/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data, _ := body.Data.(map[string]interface{})
	if data["status"] != "healthy" || data["store_reachable"] != true {
		t.Errorf("health data = %v", body.Data)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
	}{
		{name: "store reachable", wantStatus: http.StatusOK},
		{name: "store down", pingErr: errors.New("store is closed"), wantStatus: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.store.pingErr = tt.pingErr

			resp, body := ts.get(t, "/api/v1/health/ready", nil)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.pingErr != nil && (body.Error == nil || body.Error.Code != ErrCodeServiceUnavailable) {
				t.Errorf("error = %+v, want %s", body.Error, ErrCodeServiceUnavailable)
			}
		})
	}
}

func TestHealthLive(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.get(t, "/api/v1/health/live", nil)
	if resp.StatusCode != http.StatusOK || body.Status != "success" {
		t.Errorf("live = %d %q", resp.StatusCode, body.Status)
	}
}

func TestWebSocket_RejectedUpgrades(t *testing.T) {
	upgrade := http.Header{
		"Connection":            {"Upgrade"},
		"Upgrade":               {"websocket"},
		"Sec-Websocket-Version": {"13"},
		"Sec-Websocket-Key":     {"dGhlIHNhbXBsZSBub25jZQ=="},
	}
	withOrigin := func(origin string) http.Header {
		h := upgrade.Clone()
		h.Set("Origin", origin)
		return h
	}

	tests := []struct {
		name       string
		query      string
		header     http.Header
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing document id",
			query:      "",
			header:     withOrigin("https://app.example.com"),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "malformed document id",
			query:      "?documentId=alice:novel",
			header:     withOrigin("https://app.example.com"),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "plain GET",
			query:      "?documentId=alice:novel:ch1",
			wantStatus: http.StatusUpgradeRequired,
			wantCode:   ErrCodeUpgradeRequired,
		},
		{
			name:       "foreign origin",
			query:      "?documentId=alice:novel:ch1",
			header:     withOrigin("https://evil.example.com"),
			wantStatus: http.StatusForbidden,
			wantCode:   ErrCodeOriginRejected,
		},
		{
			name:       "missing origin",
			query:      "?documentId=alice:novel:ch1",
			header:     upgrade,
			wantStatus: http.StatusForbidden,
			wantCode:   ErrCodeOriginRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			resp, body := ts.get(t, "/ws"+tt.query, tt.header)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if body.Error == nil || body.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", body.Error, tt.wantCode)
			}
			if ts.reg.Stats().Connections != 0 {
				t.Error("rejected upgrade registered a connection")
			}
		})
	}
}

func TestWebSocket_UpgradeAndAuthenticate(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws?documentId=alice:novel:ch1"
	ws, resp, err := gorillaws.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.example.com"}})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer ws.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d, want 101", resp.StatusCode)
	}

	tok, err := ts.jwt.GenerateToken("alice", "editor")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if err := ws.WriteMessage(gorillaws.TextMessage, []byte(tok)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if mt != gorillaws.TextMessage || string(data) != protocol.FrameAuthenticated {
		t.Fatalf("first frame = %d %q, want %q", mt, data, protocol.FrameAuthenticated)
	}

	_, data, err = ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	msg, err := protocol.Decode(data)
	if err != nil || msg.Type != protocol.MessageSync || msg.SyncType != protocol.SyncStep1 {
		t.Fatalf("second frame = %+v (%v), want sync step 1", msg, err)
	}
}

func TestProjectStats(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		user       string
		wantStatus int
		wantCode   string
	}{
		{name: "no token", path: "/api/v1/projects/alice/novel/stats", wantStatus: http.StatusUnauthorized, wantCode: ErrCodeUnauthorized},
		{name: "not the owner", path: "/api/v1/projects/alice/novel/stats", user: "mallory", wantStatus: http.StatusForbidden, wantCode: ErrCodeForbidden},
		{name: "invalid slug", path: "/api/v1/projects/alice/no:vel/stats", user: "alice", wantStatus: http.StatusBadRequest, wantCode: ErrCodeValidation},
		{name: "owner", path: "/api/v1/projects/alice/novel/stats", user: "alice", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var header http.Header
			if tt.user != "" {
				header = ts.bearer(t, tt.user)
			}
			resp, body := ts.get(t, tt.path, header)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantCode != "" && (body.Error == nil || body.Error.Code != tt.wantCode) {
				t.Errorf("error = %+v, want %s", body.Error, tt.wantCode)
			}
			if tt.wantStatus == http.StatusOK {
				data, _ := body.Data.(map[string]interface{})
				if data["project"] != "alice:novel" || data["live"] != false {
					t.Errorf("data = %v", body.Data)
				}
			}
		})
	}
}

func TestStoreStats(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.get(t, "/api/v1/store/stats", ts.bearer(t, "alice"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data, _ := body.Data.(map[string]interface{})
	if data["appends"] != float64(7) {
		t.Errorf("appends = %v, want 7", data["appends"])
	}
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.get(t, "/nope", nil)
	if resp.StatusCode != http.StatusNotFound || body.Error == nil || body.Error.Code != ErrCodeNotFound {
		t.Errorf("got %d %+v", resp.StatusCode, body.Error)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.get(t, "/api/v1/health/live", nil)

	resp, err := http.Get(ts.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "inkwell_") {
		t.Error("metrics output has no inkwell_ series")
	}
}

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a\nb", "a\\x0ab"},
		{"tab\there", "tab\\x09here"},
	}
	for _, tt := range tests {
		if got := sanitizeLogValue(tt.in); got != tt.want {
			t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
