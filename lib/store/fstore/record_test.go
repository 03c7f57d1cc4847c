package fstore

import (
	"sync"
	"testing"
	"time"
)

func TestRecordPut(t *testing.T) {
	rec := newLayerRecord("l", map[string]string{"a": "1"}, time.Now())

	if rec.isDirty() {
		t.Fatalf("A new record must be clean")
	}
	if rec.put("a", "1") {
		t.Errorf("Expected no change for the stored value")
	}
	if rec.isDirty() {
		t.Errorf("An unchanged value must not mark the record dirty")
	}

	if !rec.put("a", "2") || !rec.put("b", "3") {
		t.Errorf("Expected changes to be reported")
	}
	if got := rec.getModifications(); got != 2 {
		t.Errorf("Expected 2 modifications, got %d", got)
	}

	snapshot := rec.snapshot()
	if len(snapshot) != 2 || snapshot["a"] != "2" || snapshot["b"] != "3" {
		t.Errorf("Unexpected snapshot %v", snapshot)
	}
}

func TestRecordResetModifications(t *testing.T) {
	rec := newLayerRecord("l", nil, time.Now())
	rec.put("a", "1")

	seen := rec.getModifications()
	rec.put("a", "2")

	if rec.resetModifications(seen) {
		t.Fatalf("Reset must fail after a concurrent change")
	}
	if !rec.resetModifications(rec.getModifications()) {
		t.Fatalf("Reset with the current counter must succeed")
	}
	if rec.isDirty() {
		t.Errorf("Expected a clean record after the reset")
	}
}

func TestRecordConcurrentPut(t *testing.T) {
	rec := newLayerRecord("l", nil, time.Now())

	numWorkers := 8
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				rec.put(string(rune('a'+w)), string(rune('0'+i%10)))
			}
		}(w)
	}
	wg.Wait()

	// every accepted change is counted
	if got := rec.getModifications(); got < int64(numWorkers) || got > int64(numWorkers*100) {
		t.Errorf("Unexpected modification count %d", got)
	}
	if got := len(rec.snapshot()); got != numWorkers {
		t.Errorf("Expected %d keys, got %d", numWorkers, got)
	}
}

func TestRecordIdleSince(t *testing.T) {
	now := time.Now()
	rec := newLayerRecord("l", nil, now)

	if !rec.idleSince(now) {
		t.Errorf("Expected the record to be idle since its last access")
	}
	if rec.idleSince(now.Add(-time.Second)) {
		t.Errorf("Expected the record to be used after that time")
	}
}
