// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/inkwell/internal/store"
)

type mockLoop struct {
	mu       sync.Mutex
	startErr error
	running  bool
	starts   int
	stops    int
}

func (m *mockLoop) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.startErr != nil {
		return m.startErr
	}
	m.running = true
	return nil
}

func (m *mockLoop) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.running = false
}

func (m *mockLoop) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *mockLoop) Name() string { return "mock-loop" }

func TestStoreLoopService_Serve(t *testing.T) {
	t.Run("stops loop on cancel", func(t *testing.T) {
		loop := &mockLoop{}
		svc := NewStoreLoopService(loop)
		if svc.String() != "mock-loop" {
			t.Errorf("String() = %q", svc.String())
		}

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		deadline := time.Now().Add(time.Second)
		for !loop.IsRunning() && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()

		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
		if loop.IsRunning() || loop.stops != 1 {
			t.Errorf("running=%v stops=%d after Serve", loop.IsRunning(), loop.stops)
		}
	})

	t.Run("start failure", func(t *testing.T) {
		loop := &mockLoop{startErr: errors.New("store is closed")}
		err := NewStoreLoopService(loop).Serve(context.Background())
		if err == nil || !errors.Is(err, loop.startErr) {
			t.Errorf("Serve() error = %v", err)
		}
	})
}

func TestStoreLoopService_RealLoop(t *testing.T) {
	cfg := store.InMemoryConfig()
	cfg.RetryInterval = 10 * time.Millisecond
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	loop := store.NewRetryLoop(st)
	svc := NewStoreLoopService(loop)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !loop.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !loop.IsRunning() {
		t.Fatal("retry loop not running")
	}
	cancel()
	<-errCh
	if loop.IsRunning() {
		t.Error("retry loop still running after cancel")
	}
}

type mockRunner struct {
	ran chan struct{}
}

func (m *mockRunner) RunWithContext(ctx context.Context) error {
	close(m.ran)
	<-ctx.Done()
	return ctx.Err()
}

func TestRegistryService_Serve(t *testing.T) {
	runner := &mockRunner{ran: make(chan struct{})}
	svc := NewRegistryService(runner)
	if svc.String() != "actor-registry" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	<-runner.ran
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v", err)
	}
}
