// Package config loads the disk-core's runtime configuration: ambient
// logging/telemetry/metrics settings plus the domain configuration table of
// spec §6 (piece_block_size, cache_size_blocks, file_pool_size, …).
//
// Configuration sources, in order of precedence:
//  1. Environment variables (TORRENTCORE_*) (highest priority)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// No CLI flag overrides individual values; the CLI's --config flag only
// selects which file is read.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/torrentstore/diskcore/internal/bytesize"
)

// Config is the disk-core's complete runtime configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Disk      DiskConfig      `mapstructure:"disk" yaml:"disk"`
}

// LoggingConfig controls logging behavior (internal/logger).
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing of disk jobs
// (internal/telemetry), and Pyroscope continuous profiling.
type TelemetryConfig struct {
	Enabled    bool            `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string          `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool            `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64         `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// DiskIOMode is one of the three disk_io_read_mode/disk_io_write_mode
// settings of spec §6.
const (
	DiskIOEnableCache            = "enable_cache"
	DiskIODisableCache           = "disable_cache"
	DiskIODisableForAlignedFiles = "disable_for_aligned_files"
)

// DiskConfig is the domain configuration table of spec §6: every option the
// storage backend, block cache, disk job queue, and piece manager consume.
type DiskConfig struct {
	// SavePathRoot is the default root directory new storages are created
	// under, absent a per-torrent override.
	SavePathRoot string `mapstructure:"save_path_root" validate:"required" yaml:"save_path_root"`

	// ResumeStorePath is the badger directory backing pkg/piecemgr.Store's
	// cross-restart bitmap/checkpoint persistence. Empty disables it.
	ResumeStorePath string `mapstructure:"resume_store_path" yaml:"resume_store_path"`

	PieceBlockSize        bytesize.ByteSize `mapstructure:"piece_block_size" validate:"required" yaml:"piece_block_size"`
	CacheSizeBlocks       int64             `mapstructure:"cache_size_blocks" validate:"required,gt=0" yaml:"cache_size_blocks"`
	CacheLowWatermark     int64             `mapstructure:"cache_low_watermark" validate:"omitempty,gt=0" yaml:"cache_low_watermark"`
	FilePoolSize          int               `mapstructure:"file_pool_size" validate:"required,gt=0" yaml:"file_pool_size"`
	CoalesceReads         bool              `mapstructure:"coalesce_reads" yaml:"coalesce_reads"`
	CoalesceWrites        bool              `mapstructure:"coalesce_writes" yaml:"coalesce_writes"`
	DisableOSCache        bool              `mapstructure:"disable_os_cache" yaml:"disable_os_cache"`
	NoAtimeStorage        bool              `mapstructure:"no_atime_storage" yaml:"no_atime_storage"`
	LockFiles             bool              `mapstructure:"lock_files" yaml:"lock_files"`
	AllocateFiles         bool              `mapstructure:"allocate_files" yaml:"allocate_files"`

	OptimizeHashingForSpeed   bool `mapstructure:"optimize_hashing_for_speed" yaml:"optimize_hashing_for_speed"`
	NoRecheckIncompleteResume bool `mapstructure:"no_recheck_incomplete_resume" yaml:"no_recheck_incomplete_resume"`

	DiskIOReadMode  string `mapstructure:"disk_io_read_mode" validate:"omitempty,oneof=enable_cache disable_cache disable_for_aligned_files" yaml:"disk_io_read_mode"`
	DiskIOWriteMode string `mapstructure:"disk_io_write_mode" validate:"omitempty,oneof=enable_cache disable_cache disable_for_aligned_files" yaml:"disk_io_write_mode"`

	MaxQueuedDiskBytes bytesize.ByteSize `mapstructure:"max_queued_disk_bytes" yaml:"max_queued_disk_bytes"`

	Workers          int           `mapstructure:"workers" validate:"required,gt=0" yaml:"workers"`
	HashingThreads   int           `mapstructure:"hashing_threads" validate:"omitempty,gte=0" yaml:"hashing_threads"`
	PerfWarnInterval time.Duration `mapstructure:"perf_warn_interval" yaml:"perf_warn_interval"`
}

// Load loads configuration from file, environment, and defaults, applies
// defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration, returning a user-actionable error when no
// config file exists at the resolved path.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"initialize one first:\n  torrentcored config init\n\n"+
				"or specify a custom config file:\n  torrentcored <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: load: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML, creating parent directories as
// needed. Used by `torrentcored config init`.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("TORRENTCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}

// configDecodeHooks composes the ByteSize and time.Duration mapstructure
// decode hooks so config files can use human-readable sizes ("16KiB") and
// durations ("30s") for the fields that need them.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "torrentcore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "torrentcore")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string { return filepath.Join(getConfigDir(), "config.yaml") }

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for `config init`).
func GetConfigDir() string { return getConfigDir() }
