package util

import (
	"runtime"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T interface{}] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// LockFreeMPSC is a lock-free multi-producer single-consumer queue.
// Producers append with Push, the single consumer pops everything that is
// queued with Drain. The same pointer may be pushed any number of times,
// the queue does not deduplicate.
type LockFreeMPSC[T interface{}] struct {
	head   atomic.Pointer[node[T]] // sentinel, only moved by the consumer
	tail   atomic.Pointer[node[T]]
	closed atomic.Bool
}

// NewLockFreeMPSC creates a new lock-free multi-producer single-consumer queue
func NewLockFreeMPSC[T interface{}]() *LockFreeMPSC[T] {
	// Create a sentinel node (dummy node at the beginning)
	sentinel := &node[T]{}

	q := &LockFreeMPSC[T]{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	return q
}

// Push adds an item to the queue.
// Returns true if the item was added, or false if the item is nil or the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *LockFreeMPSC[T]) Push(value *T) bool {

	if value == nil {
		return false
	}

	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	var backoff uint8 = 0

	for {
		tailNode := q.tail.Load()

		next := tailNode.next.Load()
		if next == nil {
			// the tail has no next node yet, try to append our node
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// may fail if another producer already helped moving the tail
				q.tail.CompareAndSwap(tailNode, newNode)
				return true
			}
		} else {
			// help update the tail pointer if another producer has already appended a node but hasn't updated the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		/*
		 Exponential backoff under contention:
		  - few retries: spin with Gosched to avoid scheduling overhead
		  - many retries: keep yielding so the winning producer can finish
		*/

		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// Drain pops every item that was visible in the queue when Drain was called
// and hands it to fn, in queue order. Items pushed while Drain runs are left
// for the next call, so fn may safely push items back into the queue.
// Returns the number of items handed to fn.
//
// Thread-safety: Only a single goroutine may call Drain at a time.
func (q *LockFreeMPSC[T]) Drain(fn func(value *T)) int {
	// the tail may lag behind the real last node, anything after it is picked up by the next drain
	last := q.tail.Load()
	count := 0

	for {
		head := q.head.Load()
		if head == last {
			return count
		}

		next := head.next.Load()
		if next == nil {
			return count
		}

		// Capture value before updating pointers
		value := next.value

		// next becomes the new sentinel
		q.head.Store(next)

		// help go gc
		next.value = nil

		fn(value)
		count++
	}
}

// Close closes the queue, preventing further writes.
// Items already in the queue can still be drained.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)
}

// IsClosed returns true if the queue is closed.
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns an approximate count of the number of items in the queue.
// This is O(n) and should only be used for debugging and statistics.
func (q *LockFreeMPSC[T]) Len() int {
	count := 0
	current := q.head.Load()

	for {
		next := current.next.Load()
		if next == nil {
			break
		}
		count++
		current = next
	}

	return count
}
