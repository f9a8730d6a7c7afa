// Package config implements the configuration management for a migration
// run. It handles parsing and validation of all parameters that govern the
// scan, Glacier restore, sync, verify, and delete phases.
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for a migration run. All fields correspond
// to the recognized configuration parameters for the migration engine.
type Config struct {
	LocalBasePath      string        // Local directory objects are synced into
	StateDBPath        string        // Path to the bbolt state store file
	Region             string        // AWS region for the operation
	ExcludedBuckets    []string      // Bucket names the scanner skips entirely
	GlacierRestoreDays int           // Retention window in days for a restored Glacier copy
	GlacierRestoreTier string        // "Standard"|"Bulk"|"Expedited" - default Glacier restore tier
	MaxWorkers         int           // Maximum number of concurrent per-object downloads
	DownloadChunkBytes int           // Bytes per streamed download chunk
	DryRun             bool          // If true, verify but never delete from S3
	ShutdownTimeout    time.Duration // Graceful shutdown timeout
}

// Validate ensures all required fields are present and have valid values.
func (c *Config) Validate() error {
	if c.LocalBasePath == "" {
		return fmt.Errorf("local base path is required")
	}

	if c.StateDBPath == "" {
		return fmt.Errorf("state DB path is required")
	}

	if c.Region == "" {
		return fmt.Errorf("region is required")
	}

	if c.GlacierRestoreDays < 1 {
		return fmt.Errorf("glacier restore days must be at least 1")
	}

	switch c.GlacierRestoreTier {
	case "Standard", "Bulk", "Expedited":
	default:
		return fmt.Errorf("glacier restore tier must be Standard, Bulk, or Expedited")
	}

	if c.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be at least 1")
	}

	if c.DownloadChunkBytes < 1 {
		return fmt.Errorf("download chunk bytes must be at least 1")
	}

	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second")
	}

	return nil
}

// IsExcluded reports whether bucket was named in ExcludedBuckets.
func (c *Config) IsExcluded(bucket string) bool {
	for _, b := range c.ExcludedBuckets {
		if b == bucket {
			return true
		}
	}
	return false
}

// RestoreTier returns the Glacier restore tier to request for an object with
// the given storage class. DEEP_ARCHIVE objects always use the Bulk tier
// regardless of the configured default.
func (c *Config) RestoreTier(storageClass string) string {
	if storageClass == "DEEP_ARCHIVE" {
		return "Bulk"
	}
	return c.GlacierRestoreTier
}

// DefaultConfig returns the Config used by the CLI when a flag is not
// supplied explicitly.
func DefaultConfig() *Config {
	return &Config{
		GlacierRestoreDays: 90,
		GlacierRestoreTier: "Standard",
		MaxWorkers:         8,
		DownloadChunkBytes: 1 << 20,
		ShutdownTimeout:    5 * time.Minute,
	}
}
