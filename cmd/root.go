package cmd

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/identifier/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "identifier-service",
	Short: "Traceability identifier service",
	Long: `Issues and decodes seed-to-sale identifiers: batch numbers, full serial
numbers with a Luhn check digit and the short serials printed on labels.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory holding config.yaml or app.env")
}

// loadConfig reads the configuration and applies its logging settings
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, err
	}
	configureLogging(cfg.Logging, cfg.Environment)
	return cfg, nil
}

func configureLogging(cfg config.LoggingConfig, environment string) {
	if cfg.Format == "console" || environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// LOG_LEVEL wins over the configured level
	if os.Getenv("LOG_LEVEL") != "" {
		return
	}
	if level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil && cfg.Level != "" {
		zerolog.SetGlobalLevel(level)
	}
}
