// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/inkwell/internal/logging"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrDeferred is returned by Append when the fragment could not be
	// written yet. The fragment is kept in memory and retried; LoadAll
	// already includes it.
	ErrDeferred = errors.New("fragment write deferred")

	// ErrInvalidDocument is returned for an empty document ID or one that
	// contains a NUL byte.
	ErrInvalidDocument = errors.New("invalid document id")
)

const keyPrefix = "frag\x00"

// Stats is a point-in-time summary of store activity.
type Stats struct {
	Appends     int64  `json:"appends"`
	Failures    int64  `json:"failures"`
	Deferred    int    `json:"deferred"`
	Dropped     int64  `json:"dropped"`
	Compactions int64  `json:"compactions"`
	Breaker     string `json:"breaker"`
}

// Store is an append-only per-document log of update fragments on BadgerDB.
//
// Fragment keys are keyPrefix + documentID + 0x00 + big-endian sequence,
// so a prefix scan yields one document's fragments in append order.
type Store struct {
	db      *badger.DB
	config  Config
	breaker *gobreaker.CircuitBreaker[struct{}]

	mu     sync.RWMutex
	closed bool

	seqMu   sync.Mutex
	lastSeq uint64

	deferMu  sync.Mutex
	deferred map[string][]*deferredFragment

	// write performs the raw Badger write. Replaced in tests.
	write func(key, value []byte) error

	totalAppends     atomic.Int64
	totalFailures    atomic.Int64
	totalDropped     atomic.Int64
	totalCompactions atomic.Int64
}

type deferredFragment struct {
	key         []byte
	data        []byte
	attempts    int
	lastAttempt time.Time
	lastErr     string
}

// Open opens (or creates) the store described by cfg.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = badgerLogger{}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	s := &Store{
		db:       db,
		config:   cfg,
		deferred: make(map[string][]*deferredFragment),
	}
	s.write = s.badgerWrite
	s.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "store-writes",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.Set(float64(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Store circuit breaker state changed")
		},
	})

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Int("compact_threshold", cfg.CompactThreshold).
		Msg("Update log store opened")
	return s, nil
}

// Config returns the store configuration.
func (s *Store) Config() Config {
	return s.config
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func validateDocument(doc string) error {
	if doc == "" || strings.IndexByte(doc, 0) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidDocument, doc)
	}
	return nil
}

func docPrefix(doc string) []byte {
	p := make([]byte, 0, len(keyPrefix)+len(doc)+1)
	p = append(p, keyPrefix...)
	p = append(p, doc...)
	return append(p, 0)
}

func fragmentKey(doc string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(docPrefix(doc), seq)
}

func keySequence(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

// nextSequence returns a nanosecond timestamp strictly greater than every
// sequence this process has issued or observed.
func (s *Store) nextSequence() uint64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	now := uint64(time.Now().UnixNano())
	if now <= s.lastSeq {
		now = s.lastSeq + 1
	}
	s.lastSeq = now
	return now
}

func (s *Store) observeSequence(seq uint64) {
	s.seqMu.Lock()
	if seq > s.lastSeq {
		s.lastSeq = seq
	}
	s.seqMu.Unlock()
}

func (s *Store) badgerWrite(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// writeThroughBreaker performs one write guarded by the circuit breaker.
func (s *Store) writeThroughBreaker(key, value []byte) error {
	start := time.Now()
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.write(key, value)
	})
	appendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.totalFailures.Add(1)
		appendFailures.Inc()
		return err
	}
	s.totalAppends.Add(1)
	appendsTotal.Inc()
	return nil
}

// Append stores one fragment for doc.
//
// If the write fails, or earlier fragments of doc are still deferred, the
// fragment is queued in memory, retried by the retry loop and ErrDeferred is
// returned. The fragment is never silently lost while the process runs.
func (s *Store) Append(ctx context.Context, doc string, fragment []byte) error {
	if err := validateDocument(doc); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data := bytes.Clone(fragment)
	key := fragmentKey(doc, s.nextSequence())

	// One room appends to a given document at a time, so an empty queue
	// cannot be refilled for doc between this check and the write.
	s.deferMu.Lock()
	if len(s.deferred[doc]) > 0 {
		s.deferLocked(doc, key, data, "queued behind deferred fragments")
		s.deferMu.Unlock()
		return ErrDeferred
	}
	s.deferMu.Unlock()

	if err := s.writeThroughBreaker(key, data); err != nil {
		s.deferMu.Lock()
		s.deferLocked(doc, key, data, err.Error())
		s.deferMu.Unlock()
		logging.Warn().
			Err(err).
			Str("document", doc).
			Msg("Fragment write failed, deferring")
		return fmt.Errorf("%w: %v", ErrDeferred, err)
	}
	return nil
}

func (s *Store) deferLocked(doc string, key, data []byte, reason string) {
	s.deferred[doc] = append(s.deferred[doc], &deferredFragment{
		key:         key,
		data:        data,
		attempts:    1,
		lastAttempt: time.Now(),
		lastErr:     reason,
	})
	deferredFragments.Inc()
}

// LoadAll returns every fragment of doc in append order: persisted fragments
// first, then fragments still awaiting a retry.
func (s *Store) LoadAll(ctx context.Context, doc string) ([][]byte, error) {
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var (
		fragments [][]byte
		maxSeq    uint64
	)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = docPrefix(doc)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if seq := keySequence(item.Key()); seq > maxSeq {
				maxSeq = seq
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read fragment: %w", err)
			}
			fragments = append(fragments, val)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load fragments for %s: %w", doc, err)
	}
	s.observeSequence(maxSeq)

	s.deferMu.Lock()
	for _, f := range s.deferred[doc] {
		fragments = append(fragments, bytes.Clone(f.data))
	}
	s.deferMu.Unlock()

	loadsTotal.Inc()
	return fragments, nil
}

// Count returns the number of persisted fragments of doc.
func (s *Store) Count(ctx context.Context, doc string) (int, error) {
	if err := validateDocument(doc); err != nil {
		return 0, err
	}
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = docPrefix(doc)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count fragments for %s: %w", doc, err)
	}
	return n, nil
}

// HasDeferred reports whether doc has fragments awaiting a retry.
func (s *Store) HasDeferred(doc string) bool {
	s.deferMu.Lock()
	defer s.deferMu.Unlock()
	return len(s.deferred[doc]) > 0
}

// Compact replaces every persisted fragment of doc with snapshot, which must
// encode the document's complete state. The snapshot is written under a new
// key first; older keys are deleted afterwards, so an interrupted compaction
// leaves a log that still replays to the same state. It returns the number
// of fragments removed.
//
// Compaction is refused while doc has deferred fragments.
func (s *Store) Compact(ctx context.Context, doc string, snapshot []byte) (int, error) {
	if err := validateDocument(doc); err != nil {
		return 0, err
	}
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if s.HasDeferred(doc) {
		return 0, ErrDeferred
	}

	seq := s.nextSequence()
	if err := s.writeThroughBreaker(fragmentKey(doc, seq), bytes.Clone(snapshot)); err != nil {
		return 0, fmt.Errorf("write snapshot for %s: %w", doc, err)
	}

	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = docPrefix(doc)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if keySequence(key) < seq {
				stale = append(stale, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan fragments for %s: %w", doc, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("delete fragment: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush compaction for %s: %w", doc, err)
	}

	s.totalCompactions.Add(1)
	compactionsTotal.Inc()
	fragmentsCompacted.Add(float64(len(stale)))
	logging.Debug().
		Str("document", doc).
		Int("removed", len(stale)).
		Int("snapshot_bytes", len(snapshot)).
		Msg("Document compacted")
	return len(stale), nil
}

// Ping reports whether the store can serve requests.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return ErrClosed
	}
	return s.db.View(func(txn *badger.Txn) error {
		return ctx.Err()
	})
}

// Stats returns current counters.
func (s *Store) Stats() Stats {
	s.deferMu.Lock()
	var deferred int
	for _, q := range s.deferred {
		deferred += len(q)
	}
	s.deferMu.Unlock()

	return Stats{
		Appends:     s.totalAppends.Load(),
		Failures:    s.totalFailures.Load(),
		Deferred:    deferred,
		Dropped:     s.totalDropped.Load(),
		Compactions: s.totalCompactions.Load(),
		Breaker:     s.breaker.State().String(),
	}
}

// RunGC runs value log garbage collection until nothing more can be reclaimed.
func (s *Store) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		gcLatency.Observe(time.Since(start).Seconds())
		gcRuns.Inc()
	}()

	for {
		err := s.db.RunValueLogGC(s.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close flushes what it can of the deferred queue and closes BadgerDB.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.FlushDeferred(context.Background(), true)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if n := s.Stats().Deferred; n > 0 {
		logging.Error().Int("fragments", n).Msg("Closing store with unwritten fragments")
	}

	timeout := s.config.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Update log store closed")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}

// badgerLogger routes BadgerDB's internal logging through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Trace().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}
