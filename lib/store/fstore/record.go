package fstore

import (
	"github.com/puzpuzpuz/xsync/v3"
	"sync/atomic"
	"time"
)

// --------------------------------------------------------------------------
// Layer Record
// --------------------------------------------------------------------------

// layerRecord is the in-memory state of one layer.
// The entries are shared by all callers and changed in place, the modification counter
// is used by the flusher to detect changes that happen while a snapshot is written.
// Two records are the same record if they belong to the same layer.
type layerRecord struct {
	layer         string
	data          *xsync.MapOf[string, string] // key -> percent-encoded value
	modifications atomic.Int64                 // accepted changes since the last successful commit
	lastAccess    atomic.Int64                 // unix nanos of the last read or write
}

// newLayerRecord creates a clean record holding data
func newLayerRecord(layer string, data map[string]string, now time.Time) *layerRecord {
	m := xsync.NewMapOf[string, string](xsync.WithPresize(len(data)))
	for k, v := range data {
		m.Store(k, v)
	}

	rec := &layerRecord{
		layer: layer,
		data:  m,
	}
	rec.touch(now)
	return rec
}

// touch records an access to the layer
func (r *layerRecord) touch(now time.Time) {
	r.lastAccess.Store(now.UnixNano())
}

// idleSince reports whether the record has not been accessed after t
func (r *layerRecord) idleSince(t time.Time) bool {
	return r.lastAccess.Load() <= t.UnixNano()
}

// get returns the stored (encoded) value of key
func (r *layerRecord) get(key string) (string, bool) {
	return r.data.Load(key)
}

// put stores the encoded value for key and counts the change.
// Returns false if the same value was already stored, in which case nothing is changed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *layerRecord) put(key, encoded string) bool {
	changed := false

	r.data.Compute(key, func(old string, loaded bool) (string, bool) {
		if loaded && old == encoded {
			return old, false
		}
		changed = true
		return encoded, false
	})

	// the change is visible before it is counted, see commit
	if changed {
		r.addModification()
	}
	return changed
}

// snapshot returns a copy of all entries
func (r *layerRecord) snapshot() map[string]string {
	out := make(map[string]string, r.data.Size())
	r.data.Range(func(k, v string) bool {
		out[k] = v
		return true
	})
	return out
}

func (r *layerRecord) getModifications() int64 {
	return r.modifications.Load()
}

func (r *layerRecord) addModification() {
	r.modifications.Add(1)
}

// resetModifications marks the record clean, but only if no change was counted since
// the counter was read as expected.
func (r *layerRecord) resetModifications(expected int64) bool {
	return r.modifications.CompareAndSwap(expected, 0)
}

func (r *layerRecord) isDirty() bool {
	return r.modifications.Load() != 0
}
