// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/config"
)

const testSecret = "tokengen_test_secret_with_more_than_32_chars"

func testConfig() (*config.Config, error) {
	return &config.Config{Security: config.SecurityConfig{
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
		Issuer:    "inkwell",
	}}, nil
}

func run(t *testing.T, load func() (*config.Config, error), args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out, load)
	cmd.SetArgs(args)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokengen_PlainToken(t *testing.T) {
	out, err := run(t, testConfig, "--user", "alice")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	cfg, _ := testConfig()
	m, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	claims, err := m.ValidateToken(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Username != "alice" || claims.Role != "editor" {
		t.Errorf("claims = %s/%s, want alice/editor", claims.Username, claims.Role)
	}
}

func TestTokengen_JSON(t *testing.T) {
	out, err := run(t, testConfig, "-u", "bob", "-r", "viewer", "--ttl", "30m", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	var got tokenOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output %q is not JSON: %v", out, err)
	}
	if got.Username != "bob" || got.Role != "viewer" || got.Token == "" {
		t.Errorf("output = %+v", got)
	}
	if d := time.Until(got.ExpiresAt); d > 31*time.Minute || d < 28*time.Minute {
		t.Errorf("expires in %v, want about 30m", d)
	}
}

func TestTokengen_Errors(t *testing.T) {
	tests := []struct {
		name string
		load func() (*config.Config, error)
		args []string
	}{
		{name: "missing user", load: testConfig, args: nil},
		{name: "invalid user", load: testConfig, args: []string{"--user", "alice:admin"}},
		{name: "invalid project", load: testConfig, args: []string{"--user", "alice", "--project", "a/b"}},
		{name: "unexpected argument", load: testConfig, args: []string{"--user", "alice", "extra"}},
		{
			name: "config failure",
			load: func() (*config.Config, error) { return nil, errors.New("JWT_SECRET is required") },
			args: []string{"--user", "alice"},
		},
		{
			name: "missing secret",
			load: func() (*config.Config, error) {
				return &config.Config{Security: config.SecurityConfig{TokenTTL: time.Hour}}, nil
			},
			args: []string{"--user", "alice"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.load, tt.args...); err == nil {
				t.Error("Execute() error = nil, want error")
			}
		})
	}
}

func TestTokengen_ProjectHint(t *testing.T) {
	out, err := run(t, testConfig, "--user", "alice", "--project", "novel")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "documentId prefix: alice:novel:") {
		t.Errorf("output %q lacks documentId prefix", out)
	}
}
