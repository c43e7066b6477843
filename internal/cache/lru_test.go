// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests move time forward.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestLRU(capacity int, ttl time.Duration) (*LRU[int], *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRU[int](capacity, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRU_GetAdd(t *testing.T) {
	c, _ := newTestLRU(2, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatal("Get() on empty cache hit")
	}
	c.Add("a", 1, time.Time{})
	c.Add("b", 2, time.Time{})
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}

	// a was used last, so b is evicted.
	c.Add("c", 3, time.Time{})
	if _, ok := c.Get("b"); ok {
		t.Error("b survived eviction")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a was evicted")
	}

	c.Add("a", 10, time.Time{})
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("updated a = %d, want 10", v)
	}

	hits, misses, size := c.Stats()
	if hits != 3 || misses != 2 || size != 2 {
		t.Errorf("Stats() = %d/%d/%d, want 3/2/2", hits, misses, size)
	}
}

func TestLRU_Expiry(t *testing.T) {
	tests := []struct {
		name     string
		expires  time.Duration // from now; 0 means zero time
		advance  time.Duration
		wantLive bool
	}{
		{name: "default ttl live", advance: 59 * time.Second, wantLive: true},
		{name: "default ttl expired", advance: time.Minute},
		{name: "earlier expiry wins", expires: 10 * time.Second, advance: 10 * time.Second},
		{name: "ttl caps later expiry", expires: time.Hour, advance: 2 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clock := newTestLRU(10, time.Minute)
			var exp time.Time
			if tt.expires > 0 {
				exp = clock.now().Add(tt.expires)
			}
			c.Add("k", 1, exp)
			clock.advance(tt.advance)
			if _, ok := c.Get("k"); ok != tt.wantLive {
				t.Errorf("Get() live = %v, want %v", ok, tt.wantLive)
			}
		})
	}
}

func TestLRU_RemoveAndCleanup(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)
	for i := 0; i < 4; i++ {
		c.Add(fmt.Sprint(i), i, clock.now().Add(time.Duration(i+1)*10*time.Second))
	}
	if !c.Remove("3") || c.Remove("3") {
		t.Error("Remove() reported wrong presence")
	}

	clock.advance(20 * time.Second)
	if got := c.CleanupExpired(); got != 2 {
		t.Errorf("CleanupExpired() = %d, want 2", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[int](64, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprint((g * i) % 100)
				c.Add(key, i, time.Time{})
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 64 {
		t.Errorf("Len() = %d, exceeds capacity", c.Len())
	}
}
