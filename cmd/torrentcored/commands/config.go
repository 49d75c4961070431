package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/torrentstore/diskcore/pkg/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the torrentcored configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the resolved configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE:  runConfigValidate,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var path string
	var err error
	if configFile != "" {
		err = config.InitConfigToPath(configFile, configForce)
		path = configFile
	} else {
		path, err = config.InitConfig(configForce)
	}
	if err != nil {
		return err
	}
	fmt.Printf("configuration file created at: %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(configFile)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(cfg)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// MustLoad runs Validate internally; reaching here means cfg passed.
	if _, err := config.MustLoad(configFile); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	displayPath := configFile
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}
	fmt.Printf("configuration file: %s\n", displayPath)
	fmt.Println("validation: OK")
	return nil
}
