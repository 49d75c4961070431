package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against its struct tags and a handful of
// cross-field invariants the tags alone can't express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(verrs)
		}
		return err
	}
	return validateCrossFields(cfg)
}

func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q constraint (value: %v)", e.Namespace(), e.Tag(), e.Value()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

func validateCrossFields(cfg *Config) error {
	if cfg.Disk.CacheLowWatermark > cfg.Disk.CacheSizeBlocks {
		return fmt.Errorf("disk.cache_low_watermark (%d) must not exceed disk.cache_size_blocks (%d)",
			cfg.Disk.CacheLowWatermark, cfg.Disk.CacheSizeBlocks)
	}
	if cfg.Disk.PieceBlockSize%4096 != 0 {
		return fmt.Errorf("disk.piece_block_size (%d) must be a multiple of 4096 for O_DIRECT alignment", cfg.Disk.PieceBlockSize)
	}
	if cfg.Disk.HashingThreads < 0 {
		return fmt.Errorf("disk.hashing_threads must not be negative")
	}
	return nil
}
