// Package commands implements the torrentcored CLI: a thin operational
// wrapper over the disk I/O core, used to initialize configuration and to
// drive a standalone piece recheck against a manifest spec without a
// running BitTorrent client attached.
package commands

import (
	"github.com/spf13/cobra"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "torrentcored",
	Short: "Piece-addressed storage and disk I/O core",
	Long: `torrentcored hosts the piece-addressed storage and disk I/O core as a
standalone process: configuration management and offline maintenance
operations (full piece recheck) against a torrent's on-disk data, without
requiring a BitTorrent client to embed the library.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default: $XDG_CONFIG_HOME/torrentcore/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(recheckCmd)
}
