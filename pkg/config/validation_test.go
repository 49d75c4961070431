package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid log format")
	}
}

func TestValidate_InvalidMetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000 // out of range

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_MissingSavePathRoot(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Disk.SavePathRoot = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for missing save_path_root")
	}
	errStr := strings.ToLower(err.Error())
	if !strings.Contains(errStr, "savepathroot") {
		t.Errorf("expected error about SavePathRoot, got: %v", err)
	}
}

func TestValidate_ZeroCacheSizeBlocks(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Disk.CacheSizeBlocks = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for zero cache_size_blocks")
	}
}

func TestValidate_CacheLowWatermarkAboveCacheSize(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Disk.CacheSizeBlocks = 100
	cfg.Disk.CacheLowWatermark = 500

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for low watermark above cache size")
	}
	if !strings.Contains(err.Error(), "cache_low_watermark") {
		t.Errorf("expected error about cache_low_watermark, got: %v", err)
	}
}

func TestValidate_UnalignedPieceBlockSize(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Disk.PieceBlockSize = 1000 // not a multiple of 4096

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for unaligned piece_block_size")
	}
	if !strings.Contains(err.Error(), "4096") {
		t.Errorf("expected error about 4096-byte alignment, got: %v", err)
	}
}

func TestValidate_InvalidDiskIOMode(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Disk.DiskIOReadMode = "nonsense"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid disk_io_read_mode")
	}
}

func TestValidate_TelemetrySampleRateOutOfRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for sample rate out of range")
	}
}

func TestValidate_AcceptsLowercaseAndUppercaseLogLevels(t *testing.T) {
	for _, level := range []string{"info", "INFO", "debug", "DEBUG", "warn", "WARN", "error", "ERROR"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level

		if err := Validate(cfg); err != nil {
			t.Errorf("validation failed for level %q: %v", level, err)
		}
	}
}
