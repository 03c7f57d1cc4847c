package fstore

import (
	"time"
)

const (
	minEvictInterval = 10 * time.Millisecond
	maxEvictInterval = time.Minute
)

// evictInterval returns how often idle layers are looked for
func evictInterval(expireAfterAccess time.Duration) time.Duration {
	interval := expireAfterAccess / 4
	if interval < minEvictInterval {
		return minEvictInterval
	}
	if interval > maxEvictInterval {
		return maxEvictInterval
	}
	return interval
}

// evictLoop removes idle layers from the cache until the store is stopped.
// WARNING: this method should never be called directly! use start() and stopBackground()
func (s *storeImpl) evictLoop() {
	defer s.workers.Done()

	ticker := time.NewTicker(evictInterval(s.config.ExpireAfterAccess))
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.evictIdle(s.clock()); n > 0 {
				log.Debugf("evicted %d idle layers", n)
			}
		}
	}
}

// evictIdle removes all clean records that were not accessed for ExpireAfterAccess.
// Dirty records stay cached until they are written, so their changes are never dropped.
// Returns the number of evicted records.
//
// Thread-safety: Runs under the flush lock, a record is never evicted while its
// snapshot is being written.
func (s *storeImpl) evictIdle(now time.Time) int {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	deadline := now.Add(-s.config.ExpireAfterAccess)
	evicted := 0

	s.cache.Range(func(layer string, rec *layerRecord) bool {
		if !rec.idleSince(deadline) || rec.isDirty() {
			return true
		}

		// check again, the record may have been used since Range read it
		s.cache.Compute(layer, func(cur *layerRecord, loaded bool) (*layerRecord, bool) {
			if !loaded {
				// set delete to true because else the value will be created
				return cur, true
			}
			if cur != rec || !cur.idleSince(deadline) || cur.isDirty() {
				return cur, false
			}
			evicted++
			return cur, true
		})
		return true
	})

	s.metrics.evictions.Add(evicted)
	return evicted
}
