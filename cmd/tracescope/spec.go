package main

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rsclarke/tracescope/internal/specgen"
)

var specFlags struct {
	clientConfig
	host string
}

var specCmd = &cobra.Command{
	Use:   "spec [name]",
	Short: "Print a stored OpenAPI document",
	Long: `Print a stored OpenAPI document by name, or the generated document of a
host with --host.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSpec,
}

func init() {
	rootCmd.AddCommand(specCmd)

	addClientFlags(specCmd, &specFlags.clientConfig)
	specCmd.Flags().StringVar(&specFlags.host, "host", "", "print the generated document of this host")
}

func runSpec(cmd *cobra.Command, args []string) error {
	var name string
	switch {
	case len(args) == 1 && specFlags.host == "":
		name = args[0]
	case len(args) == 0 && specFlags.host != "":
		name = specgen.SpecName(specFlags.host)
	default:
		return fmt.Errorf("give either a document name or --host")
	}

	c, err := specFlags.newClient()
	if err != nil {
		return err
	}

	resp, err := c.GetSpec(cmd.Context(), name)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, resp.Document, "", "  "); err != nil {
		return fmt.Errorf("format document: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), buf.String())
	return nil
}
