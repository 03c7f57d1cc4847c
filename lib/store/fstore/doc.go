// Package fstore implements a write-back layer metadata store on top of a filesystem
// based on the store.IStore interface. Layers are loaded lazily, kept in memory and
// written back by a background flusher.
//
// Key Features:
//   - Lazy, single-flight loading of layers (one disk read per layer, no matter how many
//     goroutines ask for it first)
//   - Lock-free reads and writes on cached layers
//   - Asynchronous persistence through a write-back queue and a periodic flusher
//   - Transparent migration from the uncompressed legacy file to the gzip format
//   - Eviction of idle layers that have no pending changes
//
// Implementation Details:
//
//   - Layer Records: Every cached layer is a record holding a concurrent map of
//     percent-encoded values and an atomic modification counter. PutEntry changes the
//     map in place, increments the counter and queues the record. Writing a value that is
//     already stored does nothing.
//
//   - Write-Back Queue: A lock-free multi-producer single-consumer queue. A record is
//     queued once per change, the flusher drains the queue and writes every layer once.
//
//   - Commit Loop: The flusher reads the counter, copies the map and resets the counter
//     with a compare-and-swap. If a writer got in between, the copy is taken again. A
//     change after the reset increments the counter and queues the record again, so the
//     next cycle writes it. Failed writes mark the record dirty and queue it again. A layer
//     directory that can't be created aborts the cycle with store.RetCDirectory.
//
//   - Eviction: Records not accessed for ExpireAfterAccess are dropped from the cache,
//     but only if they are clean. Eviction and flush cycles never run at the same time.
//
// Thread Safety:
//
//	All methods of the store are safe for concurrent use. PutEntry never touches the disk
//	and never waits for the flusher. Only the first access of a layer blocks on I/O.
//
// Usage Example:
//
//	s, err := fstore.NewFileStore(common.DefaultStoreConfig("/var/lib/lmstore"))
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	err = s.PutEntry("topp:states", "expirationRule", "3600")
//	value, ok, err := s.GetEntry("topp:states", "expirationRule")
//
// Durability:
//
//	Changes are persisted at most FlushInterval after they are made, and once more by
//	Close. Changes made after the last flush are lost if the process exits without
//	calling Close. A writer that keeps changing a layer faster than it can be written
//	can delay its commit indefinitely.
package fstore
