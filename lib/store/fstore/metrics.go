package fstore

import (
	"github.com/ValentinKolb/lmstore/lib/store"
	"github.com/VictoriaMetrics/metrics"
)

// storeMetrics holds the counters of one store.
// Every store has its own set, so several stores in one process don't share counters.
type storeMetrics struct {
	set *metrics.Set

	loads        *metrics.Counter
	flushCycles  *metrics.Counter
	commits      *metrics.Counter
	failedWrites *metrics.Counter
	casRetries   *metrics.Counter
	evictions    *metrics.Counter

	cachedLayers  *metrics.Gauge
	pendingWrites *metrics.Gauge
}

func newStoreMetrics(s *storeImpl) *storeMetrics {
	set := metrics.NewSet()

	m := &storeMetrics{
		set:          set,
		loads:        set.NewCounter("lmstore_layer_loads_total"),
		flushCycles:  set.NewCounter("lmstore_flush_cycles_total"),
		commits:      set.NewCounter("lmstore_commits_total"),
		failedWrites: set.NewCounter("lmstore_failed_writes_total"),
		casRetries:   set.NewCounter("lmstore_cas_retries_total"),
		evictions:    set.NewCounter("lmstore_evictions_total"),
	}

	m.cachedLayers = set.NewGauge("lmstore_cached_layers", func() float64 {
		return float64(s.cache.Size())
	})
	m.pendingWrites = set.NewGauge("lmstore_pending_writes", func() float64 {
		return float64(s.queue.Len())
	})

	return m
}

// stats returns a snapshot of all counters
func (m *storeMetrics) stats() store.Stats {
	return store.Stats{
		CachedLayers:  int(m.cachedLayers.Get()),
		PendingWrites: int(m.pendingWrites.Get()),
		Loads:         m.loads.Get(),
		FlushCycles:   m.flushCycles.Get(),
		Commits:       m.commits.Get(),
		FailedWrites:  m.failedWrites.Get(),
		CASRetries:    m.casRetries.Get(),
		Evictions:     m.evictions.Get(),
	}
}
