// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent is an authentication outcome worth auditing.
type SecurityEvent struct {
	Event      string
	Username   string
	Document   string
	Connection string
	IPAddress  string
	Success    bool
	Reason     string
	Error      string
}

// SecurityLogger writes handshake outcomes with identities masked.
// Bearer tokens are never logged.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger returns a SecurityLogger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: WithComponent("auth")}
}

// NewSecurityLoggerWithLogger returns a SecurityLogger writing to logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger.With().Str("component", "auth").Logger()}
}

// LogEvent writes one event. Failures are logged at warn level.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info()
	status := "success"
	if !event.Success {
		e = l.logger.Warn()
		status = "failed"
	}
	e = e.Str("event", event.Event).Str("status", status)

	if event.Username != "" {
		e = e.Str("username", SanitizeUsername(event.Username))
	}
	if event.Document != "" {
		e = e.Str("document", event.Document)
	}
	if event.Connection != "" {
		e = e.Str("connection", event.Connection)
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.Reason != "" {
		e = e.Str("reason", event.Reason)
	}
	if event.Error != "" && !event.Success {
		e = e.Str("error", SanitizeError(event.Error))
	}
	e.Msg("")
}

// LogHandshakeSuccess records an authenticated connection.
func (l *SecurityLogger) LogHandshakeSuccess(username, document, connection, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:      "handshake_success",
		Username:   username,
		Document:   document,
		Connection: connection,
		IPAddress:  ip,
		Success:    true,
	})
}

// LogHandshakeDenied records a rejected connection.
func (l *SecurityLogger) LogHandshakeDenied(username, document, connection, ip, reason string, err error) {
	ev := &SecurityEvent{
		Event:      "handshake_denied",
		Username:   username,
		Document:   document,
		Connection: connection,
		IPAddress:  ip,
		Reason:     reason,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	l.LogEvent(ev)
}

// SanitizeToken masks all but the first and last four characters.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeUsername keeps the first two characters.
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}
	if len(username) <= 2 {
		return "***"
	}
	return username[:2] + "***"
}

var sensitiveErrorWords = []string{"secret", "token", "key", "bearer", "authorization", "password"}

// SanitizeError replaces error text mentioning credentials with a generic
// message and truncates the rest.
func SanitizeError(err string) string {
	lower := strings.ToLower(err)
	for _, w := range sensitiveErrorWords {
		if strings.Contains(lower, w) {
			return "authentication error"
		}
	}
	return truncateString(err, 200)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
