package store

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the interface for reading and writing layer metadata.
// Reads are served from memory once a layer is loaded, writes are applied in memory
// and persisted asynchronously. Errors returned by the methods are of type *Error.
type IStore interface {
	// GetLayerMetadata returns a copy of all entries of a layer.
	// The values are returned in their stored, percent-encoded form.
	// A layer without a metadata file has no entries; this is not an error.
	GetLayerMetadata(layer string) (metadata map[string]string, err error)
	// GetEntry returns the decoded value of a single entry.
	// The boolean return value indicates whether the key was found.
	GetEntry(layer, key string) (value string, loaded bool, err error)
	// PutEntry sets the value of an entry. Writing the value that is already stored is a no-op.
	// The change becomes durable with the next flush, disk errors are never returned here.
	PutEntry(layer, key, value string) (err error)
	// Flush persists all pending changes on the calling goroutine.
	Flush() (err error)
	// Stats returns counters describing the store.
	Stats() (stats Stats)
	// Close stops all background work and makes a final attempt to persist pending changes.
	// The store must not be used after Close.
	Close() (err error)
}

// IRewriter is implemented by stores that can write a layer again without a change,
// e.g. to migrate it to the current file format.
type IRewriter interface {
	// Rewrite queues the layer for the next flush
	Rewrite(layer string) (err error)
}

// Stats holds counters describing a store.
// All values are snapshots and may be outdated as soon as they are returned.
type Stats struct {
	CachedLayers  int    `json:"cached_layers"`
	PendingWrites int    `json:"pending_writes"`
	Loads         uint64 `json:"loads"`
	FlushCycles   uint64 `json:"flush_cycles"`
	Commits       uint64 `json:"commits"`
	FailedWrites  uint64 `json:"failed_writes"`
	CASRetries    uint64 `json:"cas_retries"`
	Evictions     uint64 `json:"evictions"`
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and the underlying cause (may be nil).
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LayerMetadataError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("LayerMetadataError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code and message that keeps err as its cause.
func WrapError(code RetCode, err error, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// IsCode reports whether err is, or wraps, an *Error with the given code.
func IsCode(err error, code RetCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess       RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                // 1: Operation failed due to an internal error.
	RetCLoadIO                       // 2: A metadata file exists but could not be read.
	RetCLoadMalformed                // 3: A metadata file or a stored value could not be parsed.
	RetCEncode                       // 4: A value could not be encoded for storage.
	RetCDirectory                    // 5: A layer directory could not be created.
	RetCClosed                       // 6: The store is closed.
	RetCWriteIO                      // 7: A metadata file could not be written.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCLoadIO:
		return "LoadIO"
	case RetCLoadMalformed:
		return "LoadMalformed"
	case RetCEncode:
		return "Encode"
	case RetCDirectory:
		return "Directory"
	case RetCClosed:
		return "Closed"
	case RetCWriteIO:
		return "WriteIO"
	default:
		return "Unknown"
	}
}
