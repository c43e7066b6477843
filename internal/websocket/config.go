// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package websocket

import "time"

// Config tunes connections, rooms and project actors.
type Config struct {
	// MaxPendingFrames bounds the binary frames queued before the handshake
	// completes. One more closes the connection with 1008.
	MaxPendingFrames int

	// MaxMessageSize is the socket read limit; larger frames close with 1009.
	MaxMessageSize int64

	// SendBuffer is the outbound queue per connection. A peer whose queue is
	// full is disconnected.
	SendBuffer int

	// FrameRate and FrameBurst configure the per-connection inbound limiter.
	FrameRate  float64
	FrameBurst int

	// AuthTimeout is how long a socket may stay unauthenticated.
	AuthTimeout time.Duration

	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration

	// DocumentIdleTTL stops a room that has had no subscribers and no
	// deferred writes for this long. 0 keeps rooms for the actor's lifetime.
	DocumentIdleTTL time.Duration

	// ActorIdleTTL stops an actor with no connections for this long.
	// 0 keeps actors until the registry shuts down.
	ActorIdleTTL time.Duration

	// CompactThreshold is the fragment count at which a room compacts its
	// document. 0 disables compaction.
	CompactThreshold int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxPendingFrames: 64,
		MaxMessageSize:   8 << 20,
		SendBuffer:       256,
		FrameRate:        200,
		FrameBurst:       400,
		AuthTimeout:      10 * time.Second,
		PingInterval:     30 * time.Second,
		PongTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		CompactThreshold: 500,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxPendingFrames <= 0 {
		c.MaxPendingFrames = d.MaxPendingFrames
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.FrameRate <= 0 {
		c.FrameRate = d.FrameRate
	}
	if c.FrameBurst <= 0 {
		c.FrameBurst = d.FrameBurst
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = d.AuthTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongTimeout <= c.PingInterval {
		c.PongTimeout = 2 * c.PingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return c
}
