package testing

import (
	"fmt"
	"github.com/ValentinKolb/lmstore/lib/codec"
	"github.com/ValentinKolb/lmstore/lib/store"
	"github.com/spf13/afero"
	"sync"
	"testing"
)

// FsFactory returns an empty filesystem for one test
type FsFactory func(t testing.TB) afero.Fs

// StoreFactory opens a store on fs. It is called more than once per test on the same fs
// to check what was persisted by an earlier (closed) store.
type StoreFactory func(fs afero.Fs) (store.IStore, error)

// RunStoreTests runs the conformance test suite for a store.IStore implementation.
func RunStoreTests(t *testing.T, name string, newFs FsFactory, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("MissingLayer", func(t *testing.T) {
			testMissingLayer(t, open(t, factory, newFs(t)))
		})

		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, open(t, factory, newFs(t)))
		})

		t.Run("RoundTrip", func(t *testing.T) {
			testRoundTrip(t, newFs(t), factory)
		})

		t.Run("Idempotence", func(t *testing.T) {
			testIdempotence(t, open(t, factory, newFs(t)))
		})

		t.Run("Encoding", func(t *testing.T) {
			testEncoding(t, newFs(t), factory)
		})

		t.Run("InvalidUTF8", func(t *testing.T) {
			testInvalidUTF8(t, open(t, factory, newFs(t)))
		})

		t.Run("EmptyKey", func(t *testing.T) {
			testEmptyKey(t, newFs(t), factory)
		})

		t.Run("ConcurrentDistinctKeys", func(t *testing.T) {
			testConcurrentDistinctKeys(t, newFs(t), factory)
		})

		t.Run("ConcurrentLayers", func(t *testing.T) {
			testConcurrentLayers(t, newFs(t), factory)
		})

		t.Run("LegacyMigration", func(t *testing.T) {
			testLegacyMigration(t, newFs(t), factory)
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, open(t, factory, newFs(t)))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// open creates a store that is closed after the test
func open(t testing.TB, factory StoreFactory, fs afero.Fs) store.IStore {
	t.Helper()

	s, err := factory(fs)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// reopen closes s (final flush) and opens a fresh store on the same filesystem
func reopen(t testing.TB, s store.IStore, factory StoreFactory, fs afero.Fs) store.IStore {
	t.Helper()

	if err := s.Close(); err != nil {
		t.Fatalf("Unexpected error during Close: %v", err)
	}
	return open(t, factory, fs)
}

func mustPut(t testing.TB, s store.IStore, layer, key, value string) {
	t.Helper()
	if err := s.PutEntry(layer, key, value); err != nil {
		t.Fatalf("Unexpected error during PutEntry(%s, %s): %v", layer, key, err)
	}
}

func expectEntry(t testing.TB, s store.IStore, layer, key, expected string) {
	t.Helper()

	value, ok, err := s.GetEntry(layer, key)
	if err != nil {
		t.Errorf("Unexpected error during GetEntry(%s, %s): %v", layer, key, err)
		return
	}
	if !ok {
		t.Errorf("Key %s not found in layer %s", key, layer)
		return
	}
	if value != expected {
		t.Errorf("Value mismatch for key %s in layer %s: expected %q, got %q", key, layer, expected, value)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testMissingLayer(t *testing.T, s store.IStore) {
	metadata, err := s.GetLayerMetadata("ws:missing")
	if err != nil {
		t.Fatalf("Unexpected error for a layer without metadata: %v", err)
	}
	if len(metadata) != 0 {
		t.Errorf("Expected no entries, got %v", metadata)
	}

	_, ok, err := s.GetEntry("ws:missing", "key")
	if err != nil || ok {
		t.Errorf("Expected missing key without error, got ok=%v err=%v", ok, err)
	}
}

func testPutGet(t *testing.T, s store.IStore) {
	mustPut(t, s, "topp:states", "expirationRule", "3600")
	mustPut(t, s, "topp:states", "truncated", "true")
	mustPut(t, s, "topp:roads", "truncated", "false")

	expectEntry(t, s, "topp:states", "expirationRule", "3600")
	expectEntry(t, s, "topp:states", "truncated", "true")
	expectEntry(t, s, "topp:roads", "truncated", "false")

	// overwrite
	mustPut(t, s, "topp:states", "truncated", "false")
	expectEntry(t, s, "topp:states", "truncated", "false")

	metadata, err := s.GetLayerMetadata("topp:states")
	if err != nil {
		t.Fatalf("Unexpected error during GetLayerMetadata: %v", err)
	}
	if len(metadata) != 2 {
		t.Errorf("Expected 2 entries, got %v", metadata)
	}

	// the returned map is a copy
	metadata["injected"] = "x"
	if _, ok, _ := s.GetEntry("topp:states", "injected"); ok {
		t.Errorf("Changes to the returned map must not reach the store")
	}
}

func testRoundTrip(t *testing.T, fs afero.Fs, factory StoreFactory) {
	s := open(t, factory, fs)

	numEntries := 100
	for i := 0; i < numEntries; i++ {
		mustPut(t, s, "round:trip", fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
	}

	s = reopen(t, s, factory, fs)

	for i := 0; i < numEntries; i++ {
		expectEntry(t, s, "round:trip", fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
	}

	metadata, err := s.GetLayerMetadata("round:trip")
	if err != nil {
		t.Fatalf("Unexpected error during GetLayerMetadata: %v", err)
	}
	if len(metadata) != numEntries {
		t.Errorf("Expected %d entries after reopen, got %d", numEntries, len(metadata))
	}
}

func testIdempotence(t *testing.T, s store.IStore) {
	mustPut(t, s, "idem", "k", "v")
	if err := s.Flush(); err != nil {
		t.Fatalf("Unexpected error during Flush: %v", err)
	}
	commits := s.Stats().Commits
	if commits != 1 {
		t.Fatalf("Expected 1 commit after the first flush, got %d", commits)
	}

	// same value again, nothing to write
	mustPut(t, s, "idem", "k", "v")
	if pending := s.Stats().PendingWrites; pending != 0 {
		t.Errorf("Expected no pending writes for an unchanged value, got %d", pending)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Unexpected error during Flush: %v", err)
	}
	if got := s.Stats().Commits; got != commits {
		t.Errorf("Expected no additional commit, got %d (was %d)", got, commits)
	}

	expectEntry(t, s, "idem", "k", "v")
}

func testEncoding(t *testing.T, fs afero.Fs, factory StoreFactory) {
	values := map[string]string{
		"equals":    "a=b",
		"newline":   "line1\nline2",
		"umlaut":    "Grüße",
		"emoji":     "\U0001F5FA map",
		"percent":   "100% + 1",
		"empty":     "",
		"spaces":    "  padded  ",
		"separator": "k:v#c!",
	}

	s := open(t, factory, fs)
	for k, v := range values {
		mustPut(t, s, "enc", k, v)
	}

	// values are stored percent-encoded
	metadata, err := s.GetLayerMetadata("enc")
	if err != nil {
		t.Fatalf("Unexpected error during GetLayerMetadata: %v", err)
	}
	if metadata["equals"] != "a%3Db" {
		t.Errorf("Expected encoded value a%%3Db, got %q", metadata["equals"])
	}
	if metadata["newline"] != "line1%0Aline2" {
		t.Errorf("Expected encoded value line1%%0Aline2, got %q", metadata["newline"])
	}

	s = reopen(t, s, factory, fs)
	for k, v := range values {
		expectEntry(t, s, "enc", k, v)
	}
}

func testInvalidUTF8(t *testing.T, s store.IStore) {
	err := s.PutEntry("enc", "key", "\xff\xfe")
	if !store.IsCode(err, store.RetCEncode) {
		t.Errorf("Expected error with code %s for an invalid value, got %v", store.RetCEncode, err)
	}

	err = s.PutEntry("enc", "\xff", "value")
	if !store.IsCode(err, store.RetCEncode) {
		t.Errorf("Expected error with code %s for an invalid key, got %v", store.RetCEncode, err)
	}

	if _, ok, _ := s.GetEntry("enc", "key"); ok {
		t.Errorf("A rejected value must not be stored")
	}
}

func testEmptyKey(t *testing.T, fs afero.Fs, factory StoreFactory) {
	s := open(t, factory, fs)

	mustPut(t, s, "empty", "k", "v")
	err := s.PutEntry("empty", "", "x")
	if !store.IsCode(err, store.RetCEncode) {
		t.Errorf("Expected error with code %s for an empty key, got %v", store.RetCEncode, err)
	}

	// the layer must still load after it was written
	s = reopen(t, s, factory, fs)

	expectEntry(t, s, "empty", "k", "v")
	if _, ok, err := s.GetEntry("empty", ""); ok || err != nil {
		t.Errorf("Expected no entry for the empty key, got (%v, %v)", ok, err)
	}
}

func testConcurrentDistinctKeys(t *testing.T, fs afero.Fs, factory StoreFactory) {
	s := open(t, factory, fs)

	numWorkers := 8
	numKeys := 100

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < numKeys; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", w, i)
				if err := s.PutEntry("shared", key, key); err != nil {
					t.Errorf("Unexpected error during PutEntry: %v", err)
				}
				// flush while other workers are writing
				if i%25 == 0 {
					if err := s.Flush(); err != nil {
						t.Errorf("Unexpected error during Flush: %v", err)
					}
				}
			}
		}(w)
	}
	wg.Wait()

	s = reopen(t, s, factory, fs)

	metadata, err := s.GetLayerMetadata("shared")
	if err != nil {
		t.Fatalf("Unexpected error during GetLayerMetadata: %v", err)
	}
	if len(metadata) != numWorkers*numKeys {
		t.Errorf("Expected %d entries, got %d", numWorkers*numKeys, len(metadata))
	}
	for w := 0; w < numWorkers; w++ {
		for i := 0; i < numKeys; i++ {
			key := fmt.Sprintf("worker-%d-key-%d", w, i)
			if metadata[key] != key {
				t.Errorf("Lost update for key %s: got %q", key, metadata[key])
			}
		}
	}
}

func testConcurrentLayers(t *testing.T, fs afero.Fs, factory StoreFactory) {
	s := open(t, factory, fs)

	numLayers := 16
	var wg sync.WaitGroup
	for l := 0; l < numLayers; l++ {
		wg.Add(1)
		go func(l int) {
			defer wg.Done()
			layer := fmt.Sprintf("ws:layer-%d", l)
			for i := 0; i < 10; i++ {
				if err := s.PutEntry(layer, fmt.Sprintf("k%d", i), layer); err != nil {
					t.Errorf("Unexpected error during PutEntry: %v", err)
				}
			}
		}(l)
	}
	wg.Wait()

	s = reopen(t, s, factory, fs)

	for l := 0; l < numLayers; l++ {
		layer := fmt.Sprintf("ws:layer-%d", l)
		for i := 0; i < 10; i++ {
			expectEntry(t, s, layer, fmt.Sprintf("k%d", i), layer)
		}
	}
}

func testLegacyMigration(t *testing.T, fs afero.Fs, factory StoreFactory) {
	c := codec.NewFileCodec(fs, nil)
	layer := "topp:legacy"
	legacy := "#written by an old version\nexpirationRule=3600\nformula=a%3Db\n"

	if err := fs.MkdirAll(c.LayerDir(layer), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, c.LegacyPath(layer), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	s := open(t, factory, fs)
	expectEntry(t, s, layer, "expirationRule", "3600")
	expectEntry(t, s, layer, "formula", "a=b")

	mustPut(t, s, layer, "truncated", "true")
	s = reopen(t, s, factory, fs)

	if exists, _ := afero.Exists(fs, c.CurrentPath(layer)); !exists {
		t.Errorf("Expected the layer to be written in the current format")
	}
	raw, err := afero.ReadFile(fs, c.LegacyPath(layer))
	if err != nil {
		t.Fatalf("Legacy file must not be deleted: %v", err)
	}
	if string(raw) != legacy {
		t.Errorf("Legacy file must not change, got %q", raw)
	}

	expectEntry(t, s, layer, "expirationRule", "3600")
	expectEntry(t, s, layer, "formula", "a=b")
	expectEntry(t, s, layer, "truncated", "true")
}

func testClose(t *testing.T, s store.IStore) {
	mustPut(t, s, "close", "k", "v")

	if err := s.Close(); err != nil {
		t.Fatalf("Unexpected error during Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second Close must be a no-op, got %v", err)
	}

	if err := s.PutEntry("close", "k", "v2"); !store.IsCode(err, store.RetCClosed) {
		t.Errorf("Expected error with code %s after Close, got %v", store.RetCClosed, err)
	}
	if err := s.Flush(); !store.IsCode(err, store.RetCClosed) {
		t.Errorf("Expected error with code %s after Close, got %v", store.RetCClosed, err)
	}
}
