package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rsclarke/tracescope/internal/config"
	"github.com/rsclarke/tracescope/internal/db"
	"github.com/rsclarke/tracescope/internal/logging"
	"github.com/rsclarke/tracescope/internal/matcher"
	"github.com/rsclarke/tracescope/internal/plugins"
	"github.com/rsclarke/tracescope/internal/plugins/core/classify"
	"github.com/rsclarke/tracescope/internal/plugins/core/endpoints"
	"github.com/rsclarke/tracescope/internal/server"
	"github.com/rsclarke/tracescope/internal/specgen"
)

var serverFlags struct {
	configPath      string
	dbPath          string
	apiPort         int
	tenant          string
	interval        time.Duration
	promoteSegments bool
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server and the spec generation loop",
	Long: `Start the tracescope API server. Traces posted to the API are matched
to endpoints and classified as they arrive; OpenAPI documents are regenerated
for every host on a fixed interval.

Settings come from the YAML file given with --config, then TRACESCOPE_*
environment variables, then command line flags.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverFlags.configPath, "config", getEnv("TRACESCOPE_CONFIG", ""), "path to a YAML config file")
	serverCmd.Flags().StringVar(&serverFlags.dbPath, "db", "", "database path")
	serverCmd.Flags().IntVar(&serverFlags.apiPort, "api-port", 0, "API port to listen on")
	serverCmd.Flags().StringVar(&serverFlags.tenant, "tenant", "", "tenant for traces that do not name one")
	serverCmd.Flags().DurationVar(&serverFlags.interval, "generate-interval", 0, "time between spec generation cycles")
	serverCmd.Flags().BoolVar(&serverFlags.promoteSegments, "promote-segments", false, "promote differing literal segments to path parameters")
}

func loadServerConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(serverFlags.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = serverFlags.dbPath
	}
	if flags.Changed("api-port") {
		cfg.APIPort = serverFlags.apiPort
	}
	if flags.Changed("tenant") {
		cfg.Tenant = serverFlags.tenant
	}
	if flags.Changed("generate-interval") {
		cfg.GenerateInterval = serverFlags.interval
	}
	if flags.Changed("promote-segments") {
		cfg.PromoteSegments = serverFlags.promoteSegments
	}
	return cfg, cfg.Validate()
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadServerConfig(cmd)
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	for _, dc := range cfg.TenantDataClasses() {
		if err := db.SaveDataClass(database, dc); err != nil {
			return fmt.Errorf("seed data class %s: %w", dc.Name, err)
		}
	}

	pipeline := plugins.NewPipeline(logger.Named("pipeline"))
	pipeline.SetStore(plugins.NewSQLiteStore(database))
	pipeline.Register(endpoints.New(matcher.ForConfig(cfg.PromoteSegments)))
	pipeline.Register(classify.New(cfg.ClassifyWorkers))
	if err := pipeline.Init(); err != nil {
		return err
	}

	generator := specgen.NewGenerator(specgen.NewSQLiteStore(database), logger)

	apiSrv := &server.APIServer{
		DB:        database,
		Pipeline:  pipeline,
		Generator: generator,
		Tenant:    cfg.Tenant,
		APIToken:  cfg.APIToken,
		Logger:    logger.Named("api"),
	}
	apiServer := server.NewManagedServer("API", server.DefaultServerConfig(
		fmt.Sprintf(":%d", cfg.APIPort), apiSrv.Handler(), logger.Named("api")))

	logger.Info("starting api server",
		logging.Port(cfg.APIPort),
		logging.Tenant(cfg.Tenant),
		zap.Bool("promote_segments", cfg.PromoteSegments))
	if err := apiServer.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		runGenerationLoop(gctx, generator, cfg.GenerateInterval)
		return nil
	})
	g.Go(func() error {
		select {
		case err := <-apiServer.Done():
			if err != nil {
				return fmt.Errorf("api server: %w", err)
			}
			return fmt.Errorf("api server stopped")
		case <-gctx.Done():
		}
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		apiServer.Shutdown(shutdownCtx)
		return nil
	})

	return g.Wait()
}

// runGenerationLoop runs a generation cycle every interval until ctx is
// done.
func runGenerationLoop(ctx context.Context, generator *specgen.Generator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := generator.Run(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("spec generation cycle failed", zap.Error(err))
				}
				continue
			}
			logger.Debug("spec generation cycle complete",
				zap.Int("hosts", res.Hosts),
				zap.Int("failed", res.Failed),
				logging.Count(res.Endpoints))
		}
	}
}
