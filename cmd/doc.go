// Package cmd implements the command-line interface of lmstore. It opens a file store
// on the configured root directory, runs one operation and closes the store again, so
// every change is flushed before the process exits.
//
// The package is organized into several subpackages:
//
//   - meta: Commands for layer metadata (get, put, dump, migrate)
//   - perf: A load generator printing latency percentiles
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See lmstore -help for a list of all commands.
package cmd
