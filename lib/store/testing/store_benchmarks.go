package testing

import (
	"fmt"
	"github.com/spf13/afero"
	"math/rand"
	"sync/atomic"
	"testing"
)

// RunStoreBenchmarks runs all benchmarks for a store.IStore implementation
func RunStoreBenchmarks(b *testing.B, name string, newFs FsFactory, factory StoreFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("PutEntry", func(b *testing.B) {
			benchmarkPut(b, newFs(b), factory)
		})

		b.Run("PutEntrySameValue", func(b *testing.B) {
			benchmarkPutSameValue(b, newFs(b), factory)
		})

		b.Run("GetEntry", func(b *testing.B) {
			benchmarkGet(b, newFs(b), factory)
		})

		b.Run("Flush", func(b *testing.B) {
			benchmarkFlush(b, newFs(b), factory)
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, newFs(b), factory)
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkPut(b *testing.B, fs afero.Fs, factory StoreFactory) {
	s := open(b, factory, fs)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.PutEntry("bench", fmt.Sprintf("key-%d", i%1000), fmt.Sprintf("value-%d", i))
	}
}

func benchmarkPutSameValue(b *testing.B, fs afero.Fs, factory StoreFactory) {
	s := open(b, factory, fs)
	mustPut(b, s, "bench", "key", "value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.PutEntry("bench", "key", "value")
	}
}

func benchmarkGet(b *testing.B, fs afero.Fs, factory StoreFactory) {
	s := open(b, factory, fs)
	for i := 0; i < 1000; i++ {
		mustPut(b, s, "bench", fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = s.GetEntry("bench", fmt.Sprintf("key-%d", i%1000))
	}
}

func benchmarkFlush(b *testing.B, fs afero.Fs, factory StoreFactory) {
	s := open(b, factory, fs)
	for i := 0; i < 100; i++ {
		mustPut(b, s, "bench", fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// one change per cycle so every flush writes the layer
		_ = s.PutEntry("bench", "counter", fmt.Sprintf("%d", i))
		if err := s.Flush(); err != nil {
			b.Fatalf("Unexpected error during Flush: %v", err)
		}
	}
}

func benchmarkMixedUsage(b *testing.B, fs afero.Fs, factory StoreFactory) {
	s := open(b, factory, fs)

	var counter atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(int64(counter.Add(1))))
		for pb.Next() {
			layer := fmt.Sprintf("layer-%d", r.Intn(16))
			key := fmt.Sprintf("key-%d", r.Intn(100))
			if r.Intn(10) < 8 {
				_, _, _ = s.GetEntry(layer, key)
			} else {
				_ = s.PutEntry(layer, key, fmt.Sprintf("%d", r.Int()))
			}
		}
	})
}
