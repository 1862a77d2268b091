package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rsclarke/tracescope/internal/db"
	"github.com/rsclarke/tracescope/internal/specgen"
)

var generateFlags struct {
	dbPath string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run one spec generation cycle",
	Long: `Run one spec generation cycle directly against a local database. Every
host with unlinked endpoints or traces newer than its document's watermark
gets its generated document updated.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&generateFlags.dbPath, "db", getEnv("TRACESCOPE_DB", "tracescope.db"), "database path")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	database, err := db.Open(generateFlags.dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	generator := specgen.NewGenerator(specgen.NewSQLiteStore(database), logger)
	res, err := generator.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "hosts: %d  failed: %d  endpoints: %d\n", res.Hosts, res.Failed, res.Endpoints)
	return nil
}
