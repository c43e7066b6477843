// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package store

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/inkwell/internal/logging"
)

// Loop runs a store maintenance task on a fixed interval. It has the
// Start/Stop/IsRunning lifecycle expected by the supervisor's service
// wrappers.
type Loop struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context)

	mu       sync.Mutex
	running  bool
	stopping bool
	cancel   context.CancelFunc
	stopDone chan struct{}
}

// NewRetryLoop returns a loop that flushes deferred fragments every
// RetryInterval.
func NewRetryLoop(s *Store) *Loop {
	return &Loop{
		name:     "store-retry-loop",
		interval: s.config.RetryInterval,
		task: func(ctx context.Context) {
			s.FlushDeferred(ctx, false)
		},
	}
}

// NewGCLoop returns a loop that runs value log GC every GCInterval.
func NewGCLoop(s *Store) *Loop {
	return &Loop{
		name:     "store-gc-loop",
		interval: s.config.GCInterval,
		task: func(context.Context) {
			if err := s.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Value log GC failed")
			}
		},
	}
}

// Name returns the loop name.
func (l *Loop) Name() string {
	return l.name
}

// Start begins running the task. It is a no-op if the loop is running or
// its interval is not positive.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	for l.stopping {
		done := l.stopDone
		l.mu.Unlock()
		<-done
		l.mu.Lock()
	}
	if l.running || l.interval <= 0 {
		l.mu.Unlock()
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true
	l.stopDone = make(chan struct{})
	done := l.stopDone
	l.mu.Unlock()

	go l.run(loopCtx, done)

	logging.Info().Str("loop", l.name).Dur("interval", l.interval).Msg("Store loop started")
	return nil
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.task(ctx)
		}
	}
}

// Stop stops the loop and waits for the running task to return.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running || l.stopping {
		l.mu.Unlock()
		return
	}
	l.cancel()
	l.running = false
	l.stopping = true
	done := l.stopDone
	l.mu.Unlock()

	<-done

	l.mu.Lock()
	l.stopping = false
	l.mu.Unlock()

	logging.Info().Str("loop", l.name).Msg("Store loop stopped")
}

// IsRunning reports whether the loop is active.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
