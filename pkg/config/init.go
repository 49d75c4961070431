package config

import (
	"fmt"
	"os"
)

// InitConfig writes a default configuration file to the default location,
// for the `torrentcored config init` command. It refuses to overwrite an
// existing file unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, refusing to
// overwrite an existing file unless force is set.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config: default config failed validation: %w", err)
	}
	return SaveConfig(cfg, path)
}
