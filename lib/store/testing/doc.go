// Package testing provides standardised tests and benchmarks for
// store implementations that satisfy the store.IStore interface.
//
// The package contains:
//   - testing: A conformance test suite (round trip through a fresh store, idempotent
//     writes, value encoding, concurrent writers, legacy file migration, close semantics)
//   - benchmark: Performance tests for the common store operations
//
// Every test gets its own filesystem from an FsFactory. The StoreFactory is called again
// on the same filesystem to check what a closed store persisted.
//
// Example usage:
//
//	newFs := func(t testing.TB) afero.Fs {
//		return afero.NewBasePathFs(afero.NewOsFs(), t.TempDir())
//	}
//	factory := func(fs afero.Fs) (store.IStore, error) {
//		return fstore.NewFileStoreFs(fs, common.DefaultStoreConfig("data"))
//	}
//
//	storetesting.RunStoreTests(t, "FileStore", newFs, factory)
//	storetesting.RunStoreBenchmarks(b, "FileStore", newFs, factory)
package testing
