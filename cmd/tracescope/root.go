package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rsclarke/tracescope/internal/logging"
)

var logger *zap.Logger

var rootCmd = &cobra.Command{
	Use:   "tracescope",
	Short: "API discovery and sensitive-data classification from captured traffic",
	Long: `tracescope turns captured HTTP request/response traces into an
endpoint inventory with parameterized path templates, per-host OpenAPI
documents that stay current as traffic arrives, and a sensitive-data risk
score for every endpoint.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(logging.FromEnv())
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logging.Sync(logger)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
