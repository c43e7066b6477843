// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/inkwell/internal/crdt"
	"github.com/tomtom215/inkwell/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func failingWrite(key, value []byte) error {
	return errors.New("disk unavailable")
}

func TestStore_AppendLoadAllOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, f := range want {
		if err := s.Append(ctx, "alice:novel:ch1", f); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if err := s.Append(ctx, "alice:novel:ch10", []byte("other")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := s.LoadAll(ctx, "alice:novel:ch1")
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("LoadAll() returned %d fragments, want %d", len(got), len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("fragment[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if n, err := s.Count(ctx, "alice:novel:ch10"); err != nil || n != 1 {
		t.Errorf("Count(ch10) = %d, %v; want 1", n, err)
	}
	if n, err := s.Count(ctx, "alice:novel:missing"); err != nil || n != 0 {
		t.Errorf("Count(missing) = %d, %v; want 0", n, err)
	}
}

func TestStore_InvalidDocument(t *testing.T) {
	s := openTestStore(t)
	for _, doc := range []string{"", "a\x00b"} {
		if err := s.Append(context.Background(), doc, []byte("x")); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("Append(%q) error = %v, want ErrInvalidDocument", doc, err)
		}
	}
}

func TestStore_DeferredWritesKeepOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	doc := "alice:novel:ch1"

	if err := s.Append(ctx, doc, []byte("a")); err != nil {
		t.Fatalf("Append(a) error = %v", err)
	}

	s.write = failingWrite
	if err := s.Append(ctx, doc, []byte("b")); !errors.Is(err, ErrDeferred) {
		t.Fatalf("Append(b) error = %v, want ErrDeferred", err)
	}
	s.write = s.badgerWrite
	if err := s.Append(ctx, doc, []byte("c")); !errors.Is(err, ErrDeferred) {
		t.Fatalf("Append(c) error = %v, want ErrDeferred while b is queued", err)
	}
	if !s.HasDeferred(doc) {
		t.Fatal("HasDeferred() = false")
	}

	got, err := s.LoadAll(ctx, doc)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if want := "abc"; string(bytes.Join(got, nil)) != want {
		t.Errorf("LoadAll() = %q, want %q", bytes.Join(got, nil), want)
	}

	res := s.FlushDeferred(ctx, true)
	if res.Written != 2 {
		t.Errorf("FlushDeferred() wrote %d, want 2", res.Written)
	}
	if s.HasDeferred(doc) {
		t.Error("HasDeferred() = true after flush")
	}
	if n, _ := s.Count(ctx, doc); n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
	got, _ = s.LoadAll(ctx, doc)
	if string(bytes.Join(got, nil)) != "abc" {
		t.Errorf("LoadAll() after flush = %q, want %q", bytes.Join(got, nil), "abc")
	}
}

func TestStore_DropsAfterMaxRetries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.write = failingWrite

	if err := s.Append(ctx, "alice:novel:ch1", []byte("x")); !errors.Is(err, ErrDeferred) {
		t.Fatalf("Append() error = %v, want ErrDeferred", err)
	}
	for i := 0; i < 10 && s.Stats().Deferred > 0; i++ {
		s.FlushDeferred(ctx, true)
	}

	stats := s.Stats()
	if stats.Deferred != 0 {
		t.Errorf("Deferred = %d, want 0", stats.Deferred)
	}
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
}

func TestStore_BackoffDelaysRetry(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.RetryBackoff = time.Hour
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	s.write = failingWrite
	_ = s.Append(context.Background(), "alice:novel:ch1", []byte("x"))
	s.write = s.badgerWrite

	if res := s.FlushDeferred(context.Background(), false); res.Written != 0 {
		t.Errorf("FlushDeferred() wrote %d during backoff, want 0", res.Written)
	}
	if res := s.FlushDeferred(context.Background(), true); res.Written != 1 {
		t.Errorf("forced FlushDeferred() wrote %d, want 1", res.Written)
	}
}

func TestStore_CompactReplaysToSameState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	doc := "alice:novel:ch1"

	writer := crdt.NewDoc(1)
	live := crdt.NewDoc(0)
	for _, word := range []string{"alpha ", "beta ", "gamma"} {
		u, err := writer.InsertText("content", len(writer.Text("content")), word)
		if err != nil {
			t.Fatal(err)
		}
		delta, err := live.ApplyUpdate(u)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Append(ctx, doc, delta); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if err := s.Append(ctx, "alice:novel:ch2", []byte("untouched")); err != nil {
		t.Fatal(err)
	}

	snapshot, err := live.EncodeStateAsUpdate(nil)
	if err != nil {
		t.Fatal(err)
	}
	removed, err := s.Compact(ctx, doc, snapshot)
	if err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("Compact() removed %d, want 3", removed)
	}
	if n, _ := s.Count(ctx, doc); n != 1 {
		t.Errorf("Count() after compaction = %d, want 1", n)
	}
	if n, _ := s.Count(ctx, "alice:novel:ch2"); n != 1 {
		t.Errorf("other document Count() = %d, want 1", n)
	}

	frags, err := s.LoadAll(ctx, doc)
	if err != nil {
		t.Fatal(err)
	}
	replayed := crdt.NewDoc(0)
	for _, f := range frags {
		if _, err := replayed.ApplyUpdate(f); err != nil {
			t.Fatalf("replay error = %v", err)
		}
	}
	if got := replayed.Text("content"); got != "alpha beta gamma" {
		t.Errorf("replayed Text() = %q", got)
	}
}

func TestStore_CompactRefusedWhileDeferred(t *testing.T) {
	s := openTestStore(t)
	s.write = failingWrite
	_ = s.Append(context.Background(), "alice:novel:ch1", []byte("x"))

	if _, err := s.Compact(context.Background(), "alice:novel:ch1", []byte("snap")); !errors.Is(err, ErrDeferred) {
		t.Errorf("Compact() error = %v, want ErrDeferred", err)
	}
}

func TestStore_ReopenContinuesSequence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "store")
	cfg.SyncWrites = false
	ctx := context.Background()
	doc := "alice:novel:ch1"

	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for _, f := range []string{"1", "2"} {
		if err := s.Append(ctx, doc, []byte(f)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	if _, err := s.LoadAll(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, doc, []byte("3")); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadAll(ctx, doc)
	if err != nil {
		t.Fatal(err)
	}
	if string(bytes.Join(got, nil)) != "123" {
		t.Errorf("LoadAll() = %q, want %q", bytes.Join(got, nil), "123")
	}
}

func TestStore_Closed(t *testing.T) {
	s, err := Open(InMemoryConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	ctx := context.Background()
	if err := s.Append(ctx, "a:b", []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Append() error = %v, want ErrClosed", err)
	}
	if _, err := s.LoadAll(ctx, "a:b"); !errors.Is(err, ErrClosed) {
		t.Errorf("LoadAll() error = %v, want ErrClosed", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping() error = %v, want ErrClosed", err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{9, maxBackoff},
		{100, maxBackoff},
	}
	for _, tt := range tests {
		if got := calculateBackoff(time.Second, tt.attempts); got != tt.want {
			t.Errorf("calculateBackoff(1s, %d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestLoop_StartStop(t *testing.T) {
	s := openTestStore(t)
	loop := NewRetryLoop(s)

	s.write = failingWrite
	_ = s.Append(context.Background(), "alice:novel:ch1", []byte("x"))
	s.write = s.badgerWrite

	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !loop.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.HasDeferred("alice:novel:ch1") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.HasDeferred("alice:novel:ch1") {
		t.Error("retry loop did not flush the deferred fragment")
	}

	loop.Stop()
	if loop.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	loop.Stop()
}
