package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/torrentstore/diskcore/internal/bytesize"
)

func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

disk:
  save_path_root: "` + yamlSafePath(tmpDir) + `"
  piece_block_size: 16KiB
  cache_size_blocks: 4096
  file_pool_size: 64
  workers: 4
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("expected default output 'stderr', got %q", cfg.Logging.Output)
	}
	if cfg.Disk.CacheSizeBlocks != 4096 {
		t.Errorf("expected cache_size_blocks 4096, got %d", cfg.Disk.CacheSizeBlocks)
	}
	if cfg.Disk.FilePoolSize != 64 {
		t.Errorf("expected file_pool_size 64, got %d", cfg.Disk.FilePoolSize)
	}
	if cfg.Disk.DiskIOReadMode != DiskIOEnableCache {
		t.Errorf("expected default disk_io_read_mode %q, got %q", DiskIOEnableCache, cfg.Disk.DiskIOReadMode)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config to be returned")
	}
	if cfg.Disk.Workers <= 0 {
		t.Errorf("expected default workers > 0, got %d", cfg.Disk.Workers)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected error with invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// cache_low_watermark above cache_size_blocks must fail cross-field
	// validation (§ validateCrossFields).
	configContent := `
disk:
  save_path_root: "` + yamlSafePath(tmpDir) + `"
  cache_size_blocks: 100
  cache_low_watermark: 500
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected validation error, got nil")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Disk.PieceBlockSize != bytesize.ByteSize(defaultPieceBlockSize) {
		t.Errorf("expected default piece block size %d, got %d", defaultPieceBlockSize, cfg.Disk.PieceBlockSize)
	}
	if cfg.Disk.SavePathRoot != "." {
		t.Errorf("expected default save_path_root '.', got %q", cfg.Disk.SavePathRoot)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	if filepath.Base(dir) != "torrentcore" {
		t.Errorf("expected directory name 'torrentcore', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	_ = os.Setenv("TORRENTCORE_LOGGING_LEVEL", "ERROR")
	_ = os.Setenv("TORRENTCORE_DISK_WORKERS", "7")
	defer func() {
		_ = os.Unsetenv("TORRENTCORE_LOGGING_LEVEL")
		_ = os.Unsetenv("TORRENTCORE_DISK_WORKERS")
	}()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

disk:
  save_path_root: "` + yamlSafePath(tmpDir) + `"
  workers: 2
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Disk.Workers != 7 {
		t.Errorf("expected workers 7 from env var, got %d", cfg.Disk.Workers)
	}
}
