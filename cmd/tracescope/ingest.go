package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rsclarke/tracescope/internal/logging"
	"github.com/rsclarke/tracescope/internal/types"
)

var ingestFlags struct {
	clientConfig
	batchSize int
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Submit captured traces to the API",
	Long: `Submit traces from a file to the API in batches. The file holds either a
JSON array of traces or one JSON trace per line; "-" reads standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	addClientFlags(ingestCmd, &ingestFlags.clientConfig)
	ingestCmd.Flags().IntVar(&ingestFlags.batchSize, "batch-size", 500, "traces per request")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestFlags.batchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	c, err := ingestFlags.newClient()
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	traces, err := readTraces(r)
	if err != nil {
		return err
	}

	var total types.BatchResponse
	for _, batch := range batches(traces, ingestFlags.batchSize) {
		resp, err := c.IngestBatch(cmd.Context(), batch)
		if err != nil {
			return err
		}
		total.Accepted += resp.Accepted
		total.Dropped += resp.Dropped
		total.Invalid += resp.Invalid
		total.Failed += resp.Failed
		for _, e := range resp.Errors {
			logger.Debug("trace not stored", zap.Int("index", e.Index), zap.String("error", e.Error))
		}
	}

	logger.Info("ingest complete", logging.Count(len(traces)))
	fmt.Fprintf(cmd.OutOrStdout(), "accepted: %d  dropped: %d  invalid: %d  failed: %d\n",
		total.Accepted, total.Dropped, total.Invalid, total.Failed)
	return nil
}

// readTraces decodes a JSON array of traces or a stream of JSON traces.
func readTraces(r io.Reader) ([]types.TraceRequest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var traces []types.TraceRequest
		if err := json.Unmarshal(data, &traces); err != nil {
			return nil, fmt.Errorf("decode traces: %w", err)
		}
		return traces, nil
	}

	var traces []types.TraceRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var t types.TraceRequest
		if err := dec.Decode(&t); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("decode trace %d: %w", len(traces)+1, err)
		}
		traces = append(traces, t)
	}
	return traces, nil
}

func batches(traces []types.TraceRequest, size int) [][]types.TraceRequest {
	var out [][]types.TraceRequest
	for len(traces) > 0 {
		n := min(size, len(traces))
		out = append(out, traces[:n])
		traces = traces[n:]
	}
	return out
}
