package config

import (
	"runtime"
	"time"

	"github.com/torrentstore/diskcore/internal/bytesize"
)

const (
	defaultPieceBlockSize    = 16 * bytesize.KiB
	defaultCacheSizeBlocks   = 4096 // 64 MiB at the default block size
	defaultFilePoolSize      = 128
	defaultMaxQueuedDiskMiB  = 256
	defaultPerfWarnInterval  = 30 * time.Second
)

// GetDefaultConfig returns a fully populated Config using only built-in
// defaults, for the case where no config file exists yet.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields of cfg with their defaults. It is
// applied after unmarshaling a (possibly partial) config file so that a user
// only needs to specify the fields they want to override.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyDiskDefaults(&cfg.Disk)
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "INFO"
	}
	if l.Format == "" {
		l.Format = "text"
	}
	if l.Output == "" {
		l.Output = "stderr"
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Endpoint == "" {
		t.Endpoint = "localhost:4317"
	}
	if t.SampleRate == 0 {
		t.SampleRate = 1.0
	}
	if t.Profiling.Endpoint == "" {
		t.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(t.Profiling.ProfileTypes) == 0 {
		t.Profiling.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space"}
	}
}

func applyMetricsDefaults(m *MetricsConfig) {
	if m.Port == 0 {
		m.Port = 9090
	}
}

func applyDiskDefaults(d *DiskConfig) {
	if d.SavePathRoot == "" {
		d.SavePathRoot = "."
	}
	if d.PieceBlockSize == 0 {
		d.PieceBlockSize = bytesize.ByteSize(defaultPieceBlockSize)
	}
	if d.CacheSizeBlocks == 0 {
		d.CacheSizeBlocks = defaultCacheSizeBlocks
	}
	if d.CacheLowWatermark == 0 {
		d.CacheLowWatermark = d.CacheSizeBlocks / 2
	}
	if d.FilePoolSize == 0 {
		d.FilePoolSize = defaultFilePoolSize
	}
	if d.DiskIOReadMode == "" {
		d.DiskIOReadMode = DiskIOEnableCache
	}
	if d.DiskIOWriteMode == "" {
		d.DiskIOWriteMode = DiskIOEnableCache
	}
	if d.MaxQueuedDiskBytes == 0 {
		d.MaxQueuedDiskBytes = bytesize.ByteSize(defaultMaxQueuedDiskMiB) * bytesize.MiB
	}
	if d.Workers == 0 {
		d.Workers = runtime.NumCPU()
	}
	if d.PerfWarnInterval == 0 {
		d.PerfWarnInterval = defaultPerfWarnInterval
	}
	// HashingThreads == 0 is a legitimate setting (spec §6: "0 means use
	// the block cache's own hashing goroutine inline"), so it is never
	// defaulted away from zero.
}
