// Command server serves and inspects groundwater registry change histories.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rpattn/wellhistory/internal/config"
	"github.com/rpattn/wellhistory/internal/logging"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "wellhistory",
	Short:         "Change history of groundwater registry records",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "Directory containing config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Overrides log.level (debug, info, warn, error)")
}

// loadConfig reads the configuration and applies the logging settings.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := logging.SetLogLevel(cfg.Log.Level); err != nil {
		return config.Config{}, err
	}
	if err := logging.SetLogFormat(cfg.Log.Format); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
