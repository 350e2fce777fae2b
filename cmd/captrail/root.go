package main

import (
	"github.com/spf13/cobra"

	"github.com/captrail/captrail/pkg/captrail/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "captrail",
	Short: "Capture input activity to an append-only log",
	Long: `captrail records keyboard, mouse and foreground window activity into
a rotating append-only log file.

  - run       Start capturing until interrupted
  - history   Inspect past capture sessions
  - version   Display version information`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML or JSON config file")
}

// loadConfig resolves the effective configuration: defaults, overlaid by
// the --config file when given.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.FromFile(configPath)
}
