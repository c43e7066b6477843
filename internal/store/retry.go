// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package store

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/tomtom215/inkwell/internal/logging"
)

const maxBackoff = 5 * time.Minute

// calculateBackoff returns base * 2^attempts, capped at five minutes.
func calculateBackoff(base time.Duration, attempts int) time.Duration {
	if attempts > 50 {
		return maxBackoff
	}
	backoff := time.Duration(float64(base) * math.Pow(2, float64(attempts)))
	if backoff < 0 || backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// FlushResult summarizes one pass over the deferred queue.
type FlushResult struct {
	Written int
	Failed  int
	Dropped int
}

// FlushDeferred tries to write deferred fragments, oldest first per
// document. A document's queue stops at its first fragment that fails (or
// is still backing off) so write order is kept. A fragment that has used
// up MaxRetries attempts is dropped. With force set, backoff is ignored.
func (s *Store) FlushDeferred(ctx context.Context, force bool) FlushResult {
	var res FlushResult

	s.deferMu.Lock()
	docs := make([]string, 0, len(s.deferred))
	for doc := range s.deferred {
		docs = append(docs, doc)
	}
	s.deferMu.Unlock()
	slices.Sort(docs)

	for _, doc := range docs {
		if ctx.Err() != nil {
			return res
		}
		s.flushDocument(ctx, doc, force, &res)
	}

	if res.Written > 0 || res.Failed > 0 || res.Dropped > 0 {
		logging.Info().
			Int("written", res.Written).
			Int("failed", res.Failed).
			Int("dropped", res.Dropped).
			Msg("Deferred fragment flush complete")
	}
	return res
}

func (s *Store) flushDocument(ctx context.Context, doc string, force bool, res *FlushResult) {
	for ctx.Err() == nil {
		s.deferMu.Lock()
		queue := s.deferred[doc]
		if len(queue) == 0 {
			delete(s.deferred, doc)
			s.deferMu.Unlock()
			return
		}
		head := queue[0]
		s.deferMu.Unlock()

		if !force && time.Since(head.lastAttempt) < calculateBackoff(s.config.RetryBackoff, head.attempts-1) {
			return
		}

		retriesTotal.Inc()
		err := s.writeThroughBreaker(head.key, head.data)

		s.deferMu.Lock()
		if err == nil {
			s.popLocked(doc)
			s.deferMu.Unlock()
			res.Written++
			continue
		}

		head.attempts++
		head.lastAttempt = time.Now()
		head.lastErr = err.Error()
		if head.attempts <= s.config.MaxRetries {
			s.deferMu.Unlock()
			res.Failed++
			return
		}
		s.popLocked(doc)
		s.deferMu.Unlock()

		s.totalDropped.Add(1)
		droppedFragments.Inc()
		res.Dropped++
		logging.Error().
			Err(err).
			Str("document", doc).
			Int("attempts", head.attempts-1).
			Int("bytes", len(head.data)).
			Msg("Dropping fragment after exhausting retries; durability lost for this edit")
	}
}

func (s *Store) popLocked(doc string) {
	q := s.deferred[doc]
	q[0] = nil
	if len(q) == 1 {
		delete(s.deferred, doc)
	} else {
		s.deferred[doc] = q[1:]
	}
	deferredFragments.Dec()
}
