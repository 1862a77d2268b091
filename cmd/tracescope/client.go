package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rsclarke/tracescope/internal/client"
)

type clientConfig struct {
	apiToken string
	apiURL   string
}

func addClientFlags(cmd *cobra.Command, cfg *clientConfig) {
	cmd.Flags().StringVar(&cfg.apiToken, "api-token", getEnv("TRACESCOPE_API_TOKEN", ""), "bearer token for the API")
	cmd.Flags().StringVar(&cfg.apiURL, "api-url", getEnv("TRACESCOPE_API_URL", "http://localhost:8081"), "API server URL")
}

func (cfg *clientConfig) newClient() (*client.Client, error) {
	if cfg.apiURL == "" {
		return nil, fmt.Errorf("API URL required (use --api-url flag or TRACESCOPE_API_URL env var)")
	}
	return client.NewClient(cfg.apiURL, cfg.apiToken), nil
}
