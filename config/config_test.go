package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		LocalBasePath:      "/mnt/archive",
		StateDBPath:        "/var/lib/migration/state.db",
		Region:             "us-west-2",
		ExcludedBuckets:    []string{"scratch-bucket"},
		GlacierRestoreDays: 30,
		GlacierRestoreTier: "Standard",
		MaxWorkers:         8,
		DownloadChunkBytes: 1 << 20,
		ShutdownTimeout:    time.Minute,
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config to pass validation, got: %v", err)
	}
}

func TestMissingLocalBasePath(t *testing.T) {
	cfg := validConfig()
	cfg.LocalBasePath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing local base path")
	}
}

func TestMissingStateDBPath(t *testing.T) {
	cfg := validConfig()
	cfg.StateDBPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing state DB path")
	}
}

func TestMissingRegion(t *testing.T) {
	cfg := validConfig()
	cfg.Region = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing region")
	}
}

func TestInvalidGlacierRestoreDays(t *testing.T) {
	testCases := []int{0, -1, -100}
	for _, days := range testCases {
		t.Run("days", func(t *testing.T) {
			cfg := validConfig()
			cfg.GlacierRestoreDays = days
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected error for invalid glacier restore days: %d", days)
			}
		})
	}
}

func TestInvalidGlacierRestoreTier(t *testing.T) {
	testCases := []string{"standard", "BULK", "Rush", ""}
	for _, tier := range testCases {
		t.Run(tier, func(t *testing.T) {
			cfg := validConfig()
			cfg.GlacierRestoreTier = tier
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected error for invalid glacier restore tier: %s", tier)
			}
		})
	}
}

func TestValidGlacierRestoreTiers(t *testing.T) {
	for _, tier := range []string{"Standard", "Bulk", "Expedited"} {
		t.Run(tier, func(t *testing.T) {
			cfg := validConfig()
			cfg.GlacierRestoreTier = tier
			if err := cfg.Validate(); err != nil {
				t.Errorf("expected valid glacier restore tier %s to pass, got: %v", tier, err)
			}
		})
	}
}

func TestInvalidMaxWorkers(t *testing.T) {
	testCases := []int{0, -1, -100}
	for _, workers := range testCases {
		t.Run("workers", func(t *testing.T) {
			cfg := validConfig()
			cfg.MaxWorkers = workers
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected error for invalid max workers: %d", workers)
			}
		})
	}
}

func TestInvalidDownloadChunkBytes(t *testing.T) {
	testCases := []int{0, -1}
	for _, size := range testCases {
		t.Run("chunk", func(t *testing.T) {
			cfg := validConfig()
			cfg.DownloadChunkBytes = size
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected error for invalid download chunk bytes: %d", size)
			}
		})
	}
}

func TestInvalidShutdownTimeout(t *testing.T) {
	testCases := []time.Duration{0, 500 * time.Millisecond, -time.Second}
	for _, timeout := range testCases {
		t.Run("timeout", func(t *testing.T) {
			cfg := validConfig()
			cfg.ShutdownTimeout = timeout
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected error for invalid shutdown timeout: %v", timeout)
			}
		})
	}
}

func TestIsExcluded(t *testing.T) {
	cfg := validConfig()
	if !cfg.IsExcluded("scratch-bucket") {
		t.Error("expected scratch-bucket to be excluded")
	}
	if cfg.IsExcluded("keep-bucket") {
		t.Error("expected keep-bucket to not be excluded")
	}
}

func TestRestoreTierDeepArchiveForcesBulk(t *testing.T) {
	cfg := validConfig()
	cfg.GlacierRestoreTier = "Expedited"
	if got := cfg.RestoreTier("DEEP_ARCHIVE"); got != "Bulk" {
		t.Errorf("expected DEEP_ARCHIVE to force Bulk tier, got %s", got)
	}
	if got := cfg.RestoreTier("GLACIER"); got != "Expedited" {
		t.Errorf("expected non deep archive to use configured tier, got %s", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LocalBasePath = "/mnt/archive"
	cfg.StateDBPath = "/var/lib/migration/state.db"
	cfg.Region = "us-east-1"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config plus required fields to validate, got: %v", err)
	}
}
