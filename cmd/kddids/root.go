package main

import (
	"os"
	"sync"
	"time"

	"kdd-ids/internal/cfg"
	"kdd-ids/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	settings cfg.Settings

	logLevel string // overrides LOG_LEVEL when set
	dataPath string // overrides DATA_PATH when set
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:          "kddids",
	Short:        "Binary network-intrusion classifier for KDD-style connection records",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := cfg.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			s.LogLevel = logLevel
		}
		if dataPath != "" {
			s.DataPath = dataPath
		}
		settings = s
		return setupLogging(s.LogLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data-path", "", "directory holding the artifact database")
}

func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	return nil
}

var (
	metricsOnce    sync.Once
	metricsWrapper *metrics.MetricsWrapper
)

// cliMetrics registers the collectors on the default registry once per process.
func cliMetrics() *metrics.MetricsWrapper {
	metricsOnce.Do(func() {
		metricsWrapper = metrics.NewWrapper(metrics.New())
	})
	return metricsWrapper
}
