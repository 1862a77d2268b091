package main

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var endpointsFlags struct {
	clientConfig
}

var endpointsCmd = &cobra.Command{
	Use:   "endpoints [id]",
	Short: "List endpoints with risk scores",
	Long: `List every discovered endpoint with its risk score and data classes.
With an endpoint id, print that endpoint's data fields as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEndpoints,
}

func init() {
	rootCmd.AddCommand(endpointsCmd)

	addClientFlags(endpointsCmd, &endpointsFlags.clientConfig)
}

func runEndpoints(cmd *cobra.Command, args []string) error {
	c, err := endpointsFlags.newClient()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		resp, err := c.GetEndpoint(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}

	resp, err := c.ListEndpoints(cmd.Context())
	if err != nil {
		return err
	}
	if len(resp.Endpoints) == 0 {
		fmt.Fprintln(out, "No endpoints found.")
		return nil
	}

	fmt.Fprintf(out, "%-36s  %-6s  %-24s  %-40s  %-6s  %s\n", "ID", "METHOD", "HOST", "PATH", "RISK", "DATA CLASSES")
	for _, e := range resp.Endpoints {
		classes := "-"
		if len(e.DataClasses) > 0 {
			classes = strings.Join(e.DataClasses, ",")
		}
		fmt.Fprintf(out, "%-36s  %-6s  %-24s  %-40s  %-6s  %s\n", e.ID, e.Method, e.Host, e.Path, e.Risk, classes)
	}
	return nil
}
