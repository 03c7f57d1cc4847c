package common

import (
	"fmt"
	"strings"
	"time"
)

// Defaults of the store configuration
const (
	DefaultRootDir           = "data"
	DefaultFlushInterval     = 5 * time.Second
	DefaultExpireAfterAccess = 10 * time.Minute
	DefaultLogLevel          = "info"
)

// --------------------------------------------------------------------------
// Store configuration struct
// --------------------------------------------------------------------------

// StoreConfig holds all configuration parameters of a file store.
type StoreConfig struct {
	// RootDir is the directory below which one sub directory per layer is created
	RootDir string

	// FlushInterval is the time between two background flush cycles
	FlushInterval time.Duration

	// ExpireAfterAccess is the inactivity window after which a clean layer is dropped from the cache
	ExpireAfterAccess time.Duration

	// MaxRWAttempts and WaitAfterRename are accepted and reported but not used by the store.
	// Writes are retried without limit and files are overwritten in place.
	MaxRWAttempts   int
	WaitAfterRename time.Duration

	// Logging configuration
	LogLevel string
}

// DefaultStoreConfig returns the default configuration for a store below rootDir
func DefaultStoreConfig(rootDir string) StoreConfig {
	return StoreConfig{
		RootDir:           rootDir,
		FlushInterval:     DefaultFlushInterval,
		ExpireAfterAccess: DefaultExpireAfterAccess,
		LogLevel:          DefaultLogLevel,
	}
}

// Validate checks the configuration for values the store cannot work with
func (c *StoreConfig) Validate() error {
	if c.RootDir == "" {
		return fmt.Errorf("root directory must not be empty")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %s", c.FlushInterval)
	}
	if c.ExpireAfterAccess <= 0 {
		return fmt.Errorf("expire after access must be positive, got %s", c.ExpireAfterAccess)
	}
	if c.MaxRWAttempts < 0 {
		return fmt.Errorf("max read/write attempts must not be negative, got %d", c.MaxRWAttempts)
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *StoreConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage")
	addField("Root Directory", c.RootDir)

	addSection("Write-Back")
	addField("Flush Interval", c.FlushInterval.String())
	addField("Expire After Access", c.ExpireAfterAccess.String())
	addField("Max RW Attempts", fmt.Sprintf("%d (not enforced)", c.MaxRWAttempts))
	addField("Wait After Rename", fmt.Sprintf("%s (not enforced)", c.WaitAfterRename))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
