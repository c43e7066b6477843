// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package services

import (
	"context"
	"fmt"
)

// StartStopper is the lifecycle of a store background loop
// (*store.Loop from store.NewRetryLoop and store.NewGCLoop).
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
	Name() string
}

// StoreLoopService adapts a Start/Stop loop to suture's Serve.
//
// Example:
//
//	tree.AddDataService(services.NewStoreLoopService(store.NewRetryLoop(st)))
//	tree.AddDataService(services.NewStoreLoopService(store.NewGCLoop(st)))
type StoreLoopService struct {
	loop StartStopper
}

// NewStoreLoopService wraps loop.
func NewStoreLoopService(loop StartStopper) *StoreLoopService {
	return &StoreLoopService{loop: loop}
}

// Serve starts the loop, blocks until ctx is canceled and stops it.
// Stop waits for an in-flight tick to finish.
func (s *StoreLoopService) Serve(ctx context.Context) error {
	if err := s.loop.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.loop.Name(), err)
	}
	<-ctx.Done()
	s.loop.Stop()
	return ctx.Err()
}

// String names the service in supervisor events.
func (s *StoreLoopService) String() string {
	return s.loop.Name()
}
