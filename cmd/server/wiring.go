// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package main

import (
	"context"
	"net/http"

	"github.com/tomtom215/inkwell/internal/config"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/store"
	"github.com/tomtom215/inkwell/internal/websocket"
)

// storeConfig maps the store section onto store.Config. Fields the file
// does not set keep store defaults.
func storeConfig(cfg *config.Config) store.Config {
	sc := store.DefaultConfig()
	c := cfg.Store

	sc.Path = c.Path
	sc.InMemory = c.InMemory
	sc.SyncWrites = c.SyncWrites
	sc.Compression = c.Compression
	sc.CompactThreshold = c.CompactThreshold
	if c.RetryInterval > 0 {
		sc.RetryInterval = c.RetryInterval
	}
	if c.MaxRetries > 0 {
		sc.MaxRetries = c.MaxRetries
	}
	if c.RetryBackoff > 0 {
		sc.RetryBackoff = c.RetryBackoff
	}
	if c.GCInterval > 0 {
		sc.GCInterval = c.GCInterval
	}
	if c.GCRatio > 0 {
		sc.GCRatio = c.GCRatio
	}
	if c.BreakerFailureThreshold > 0 {
		sc.BreakerFailureThreshold = c.BreakerFailureThreshold
	}
	if c.BreakerTimeout > 0 {
		sc.BreakerTimeout = c.BreakerTimeout
	}
	return sc
}

// realtimeConfig maps the realtime section onto websocket.Config. The
// compaction threshold lives in the store section.
func realtimeConfig(cfg *config.Config) websocket.Config {
	r := cfg.Realtime
	return websocket.Config{
		MaxPendingFrames: r.MaxPendingFrames,
		MaxMessageSize:   r.MaxMessageSize,
		SendBuffer:       r.SendBuffer,
		FrameRate:        r.FrameRate,
		FrameBurst:       r.FrameBurst,
		AuthTimeout:      r.AuthTimeout,
		PingInterval:     r.PingInterval,
		PongTimeout:      r.PongTimeout,
		WriteTimeout:     r.WriteTimeout,
		DocumentIdleTTL:  r.DocumentIdleTTL,
		ActorIdleTTL:     r.ActorIdleTTL,
		CompactThreshold: cfg.Store.CompactThreshold,
	}
}

// newHTTPServer leaves ReadTimeout and WriteTimeout unset: they would
// apply to hijacked WebSocket connections, which manage their own deadlines.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.Timeout,
	}
}

// waitForTree returns the result of a tree started with ServeBackground.
// The channel delivers exactly one value and is never closed, so it is
// received once whichever way the tree stops.
func waitForTree(ctx context.Context, errCh <-chan error) error {
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish")
		return <-errCh
	}
}
