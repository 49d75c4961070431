package commands

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/torrentstore/diskcore/internal/logger"
	"github.com/torrentstore/diskcore/pkg/alert"
	"github.com/torrentstore/diskcore/pkg/bufpool"
	"github.com/torrentstore/diskcore/pkg/cache"
	"github.com/torrentstore/diskcore/pkg/config"
	"github.com/torrentstore/diskcore/pkg/filepool"
	"github.com/torrentstore/diskcore/pkg/metrics"
	"github.com/torrentstore/diskcore/pkg/piecemgr"
	"github.com/torrentstore/diskcore/pkg/storage"
)

var (
	recheckManifest  string
	recheckSavePath  string
	recheckTorrentID string
)

var recheckCmd = &cobra.Command{
	Use:   "recheck",
	Short: "Run a full piece recheck against a manifest spec",
	Long: `recheck loads a manifest spec (file list + piece length + optional
expected piece hashes) and runs the piece manager's full-recheck state
machine to completion against save-path, reporting the resulting
completed-piece bitmap.`,
	RunE: runRecheck,
}

func init() {
	recheckCmd.Flags().StringVar(&recheckManifest, "manifest", "", "path to the manifest spec YAML file (required)")
	recheckCmd.Flags().StringVar(&recheckSavePath, "save-path", "", "root directory the manifest's files live under (default: disk.save_path_root from config)")
	recheckCmd.Flags().StringVar(&recheckTorrentID, "torrent-id", "", "torrent id (default: a random uuid)")
	_ = recheckCmd.MarkFlagRequired("manifest")
}

// consoleAlerts logs posted alerts instead of discarding them, for visibility
// during a standalone recheck run.
type consoleAlerts struct{}

func (consoleAlerts) Post(a alert.Alert) {
	logger.Warn("alert", "kind", a.Kind.String(), "storage_id", a.StorageID, "path", a.Path, "code", a.Code)
}

// specHashVerifier checks a hashed piece against the manifest spec's
// optional piece_hashes list. With no expected hashes configured, every
// piece is treated as valid, matching piecemgr.Config.Verifier's documented
// nil behavior for the common "just learn what's there" recheck case.
type specHashVerifier struct {
	expected [][20]byte
}

func newSpecHashVerifier(hexHashes []string) (*specHashVerifier, error) {
	if len(hexHashes) == 0 {
		return nil, nil
	}
	v := &specHashVerifier{expected: make([][20]byte, len(hexHashes))}
	for i, h := range hexHashes {
		raw, err := hex.DecodeString(h)
		if err != nil || len(raw) != sha1.Size {
			return nil, fmt.Errorf("manifest spec: piece_hashes[%d] is not a 20-byte hex sha1", i)
		}
		copy(v.expected[i][:], raw)
	}
	return v, nil
}

func (v *specHashVerifier) VerifyPiece(_ string, piece int, sum [20]byte) bool {
	if v == nil {
		return true
	}
	if piece < 0 || piece >= len(v.expected) {
		return false
	}
	return v.expected[piece] == sum
}

func runRecheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry(nil)
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		metrics.Serve(ctx, metrics.Addr(cfg.Metrics.Port))
		logger.Info("metrics endpoint listening", "addr", metrics.Addr(cfg.Metrics.Port))
	}

	savePath := recheckSavePath
	if savePath == "" {
		savePath = cfg.Disk.SavePathRoot
	}

	spec, err := loadManifestSpec(recheckManifest)
	if err != nil {
		return err
	}
	base, err := spec.buildManifest()
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	verifier, err := newSpecHashVerifier(spec.ExpectedSHA)
	if err != nil {
		return err
	}

	torrentID := recheckTorrentID
	if torrentID == "" {
		torrentID = uuid.NewString()
	}

	blockSize := int(cfg.Disk.PieceBlockSize.Uint64())
	bufPool, err := bufpool.NewPool(&bufpool.Config{BlockSize: blockSize})
	if err != nil {
		return fmt.Errorf("create buffer pool: %w", err)
	}
	filePool := filepool.NewWithOptions(cfg.Disk.FilePoolSize, cfg.Disk.LockFiles, cfg.Disk.NoAtimeStorage)

	blockCache := cache.New(cache.Config{
		MaxBlocks:    cfg.Disk.CacheSizeBlocks,
		LowWatermark: cfg.Disk.CacheLowWatermark,
		Pool:         bufPool,
		Metrics:      metrics.NewCacheMetrics(),
	})

	ioMode := storage.ModeCached
	if cfg.Disk.DisableOSCache ||
		(cfg.Disk.DiskIOReadMode == config.DiskIODisableCache && cfg.Disk.DiskIOWriteMode == config.DiskIODisableCache) {
		ioMode = storage.ModeDirect
	}

	alerts := alert.Dispatcher(consoleAlerts{})
	st := storage.New(torrentID, base, savePath, filePool, alerts, ioMode)
	st.SetCoalescing(cfg.Disk.CoalesceReads, cfg.Disk.CoalesceWrites)
	if err := st.Initialize(cfg.Disk.AllocateFiles); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	var store *piecemgr.Store
	if cfg.Disk.ResumeStorePath != "" {
		store, err = piecemgr.OpenStore(cfg.Disk.ResumeStorePath, metrics.NewPieceStoreMetrics())
		if err != nil {
			return fmt.Errorf("open resume store: %w", err)
		}
		defer store.Close()
	}

	mgr := piecemgr.New(torrentID, st, blockCache, piecemgr.Config{
		BlockSize:                 blockSize,
		OptimizeHashingForSpeed:   cfg.Disk.OptimizeHashingForSpeed,
		NoRecheckIncompleteResume: cfg.Disk.NoRecheckIncompleteResume,
		Verifier:                  verifier,
		Alerts:                    alerts,
		Store:                     store,
		Metrics:                   metrics.NewPieceMetrics(),
	})

	// An empty resume record demotes straight to need_full_check, which is
	// exactly the state a standalone recheck run wants to start from.
	if err := mgr.CheckFastresume(nil); err != nil {
		return fmt.Errorf("start full check: %w", err)
	}

	for {
		done, err := mgr.Tick()
		if err != nil {
			return fmt.Errorf("recheck tick: %w", err)
		}
		if done {
			break
		}
	}

	have, total := mgr.Progress()
	fmt.Printf("recheck complete: %d/%d pieces verified\n", have, total)
	fmt.Printf("bitfield: %x\n", mgr.Bitfield())
	return nil
}
