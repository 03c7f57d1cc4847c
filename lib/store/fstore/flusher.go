package fstore

import (
	"github.com/ValentinKolb/lmstore/lib/common"
	"github.com/ValentinKolb/lmstore/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var flog = logger.GetLogger(common.LoggerFlusher)

// --------------------------------------------------------------------------
// Background Work
// --------------------------------------------------------------------------

// start starts the flusher and the eviction of idle layers.
// if the background work is already running, this function does nothing
//
// Thread-safety: This function is thread-safe.
func (s *storeImpl) start() {
	if s.running.CompareAndSwap(false, true) {
		s.workers.Add(2)
		go s.flushLoop()
		go s.evictLoop()
		flog.Infof("started flusher (interval %s) and eviction (idle after %s) for %s",
			s.config.FlushInterval, s.config.ExpireAfterAccess, s.config.RootDir)
	}
}

// stopBackground stops the flusher and the eviction and waits until both returned.
// the background work can't be started again after it has been stopped!
//
// Thread-safety: This function is thread-safe.
func (s *storeImpl) stopBackground() {
	if s.running.CompareAndSwap(true, false) {
		close(s.stop)
		s.workers.Wait()
	}
}

// flushLoop runs one flush cycle every FlushInterval until the store is stopped.
// WARNING: this method should never be called directly! use start() and stopBackground()
func (s *storeImpl) flushLoop() {
	defer s.workers.Done()

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.flush(); err != nil {
				flog.Errorf("flush cycle failed: %v", err)
			}
		}
	}
}

// --------------------------------------------------------------------------
// Flush Cycle
// --------------------------------------------------------------------------

// flush runs one flush cycle: every record queued so far is written once.
// Records queued while the cycle runs are written by the next cycle.
//
// Write failures are retried by later cycles and never returned. A layer directory that
// can't be created ends the cycle and is returned, the affected record and all records
// not yet written stay queued.
//
// Thread-safety: Cycles are serialized, writers never wait for a cycle.
func (s *storeImpl) flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.metrics.flushCycles.Inc()

	// a record is queued once per change, write it only once
	pending := make(map[string]*layerRecord)
	order := make([]string, 0)
	s.queue.Drain(func(rec *layerRecord) {
		prev, ok := pending[rec.layer]
		if !ok {
			order = append(order, rec.layer)
			pending[rec.layer] = rec
			return
		}
		if prev != rec {
			// the layer was evicted and loaded again, only the cached record is current.
			// changes of the evicted record were applied to it by their writers
			if cached, _ := s.cache.Load(rec.layer); cached == rec {
				pending[rec.layer] = rec
			}
		}
	})

	if len(order) == 0 {
		return nil
	}
	flog.Debugf("flushing %d layers", len(order))

	for i, layer := range order {
		if err := s.commit(pending[layer]); err != nil {
			// keep everything not written so far
			for _, rest := range order[i+1:] {
				s.requeue(pending[rest])
			}
			return err
		}
	}
	return nil
}

// commit writes a consistent snapshot of a record and marks it clean.
//
// The counter is read before the entries are copied and reset with a compare-and-swap
// after that. If a writer changed the record in between the copy is discarded and taken
// again. A change that happens after the reset is counted again and the record is queued
// by its writer, so it is never lost even though the snapshot may already contain it.
func (s *storeImpl) commit(rec *layerRecord) error {
	for {
		modifications := rec.getModifications()
		if modifications == 0 {
			// already written by an earlier cycle
			return nil
		}

		snapshot := rec.snapshot()
		if !rec.resetModifications(modifications) {
			s.metrics.casRetries.Inc()
			continue
		}

		err := s.codec.Store(rec.layer, snapshot)
		if err == nil {
			s.metrics.commits.Inc()
			return nil
		}

		s.metrics.failedWrites.Inc()
		rec.addModification()
		s.requeue(rec)

		if store.IsCode(err, store.RetCDirectory) {
			return err
		}
		flog.Warningf("failed to write metadata of layer %s, retrying with the next flush: %v", rec.layer, err)
		return nil
	}
}

// requeue puts a record back into the queue for the next cycle
func (s *storeImpl) requeue(rec *layerRecord) {
	if !s.queue.Push(rec) {
		flog.Errorf("store is closed, pending changes of layer %s are lost", rec.layer)
	}
}
