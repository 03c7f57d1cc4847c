// Package util provides small building blocks used by the metadata store.
//
// The package contains:
//   - lockfreempsc: A lock-free Multi-Producer Single-Consumer (MPSC) queue. Any number of
//     goroutines may Push concurrently, a single consumer empties the queue with Drain.
//     The file store uses it as its write-back queue of dirty layer records.
//   - layername: The default LayerNameFilter that turns a layer name into a directory
//     name that is safe on every filesystem and unique per layer.
//
// Queue Features and Guarantees:
//
//   - Lock-Free: atomic operations for high throughput and low latency even under high contention
//   - Unbounded Size: the queue can grow to any size as needed, limited only by available memory
//   - Small Footprint: minimal memory overhead per item (two pointers per item)
//   - Bounded Drain: Drain only hands out items that were queued when it started, so a
//     consumer can push failed items back without looping forever
//   - No Strict FIFO Guarantee: Under concurrent Push() operations, the exact ordering of items
//     is determined by which producer completes its operation first, not by which producer
//     started first.
package util
