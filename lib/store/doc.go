// Package store defines the interface of a layer metadata store and its error handling.
//
// A layer is identified by an opaque name and owns a small mapping of string keys to
// string values. Stores keep loaded layers in memory, apply writes there and persist
// changed layers asynchronously.
//
// Key Components:
//
//   - IStore Interface: Reading a whole layer (GetLayerMetadata) or a single entry
//     (GetEntry), writing an entry (PutEntry), flushing pending changes (Flush) and
//     shutting the store down (Close). Values handed to PutEntry and returned by GetEntry
//     are plain strings, GetLayerMetadata returns the stored percent-encoded form.
//
//   - Error System: All methods return *Error values carrying a RetCode and the cause.
//     IsCode checks the code of any wrapped error. Write errors of the background flush
//     never reach PutEntry, they are logged and retried.
//
// Implementations:
//
//   - File Store (fstore): Persists every layer as a gzip compressed properties file
//     in its own directory below a root directory. Available in the
//     "github.com/ValentinKolb/lmstore/lib/store/fstore" package.
//
// The conformance suite in lib/store/testing can be run against any implementation.
package store
