package main

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/salesmart/etl/internal/artifacts"
	"github.com/salesmart/etl/internal/config"
	"github.com/salesmart/etl/internal/etl"
	"github.com/salesmart/etl/internal/ingest"
	"github.com/salesmart/etl/internal/logging"
	"github.com/salesmart/etl/internal/warehouse"
)

var (
	cfgPath string
	dryRun  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one batch load",
	Long: `Run loads the configured raw export, cleans and canonicalizes it, builds
the dimension candidates, validates the fact candidates, and persists the new
rows to the warehouse in one transaction.

With --dry-run every artifact is computed and reported but nothing is written
to the warehouse.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&cfgPath, "config", "c", "etl_config.yaml", "path to the pipeline configuration file")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute and report all artifacts without writing to the warehouse")
}

func runBatch(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// .env values overwrite the environment so a project-local DB_PASSWORD
	// wins over a stale shell export.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Parse(cfgPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Pipeline.DryRun = dryRun
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	runID := uuid.NewString()
	log := logging.ForRun(runID, cfg.Project.Name)
	log.Info("configuration loaded",
		"csv_path", cfg.DataSource.CSVPath,
		"dry_run", cfg.Pipeline.DryRun,
		"strategy", cfg.Pipeline.Canonicalize.ItemAttributes,
	)

	var sink etl.ArtifactSink
	if cfg.Paths.ProcessedDir != "" {
		sink = artifacts.NewWriter(cfg.Paths.ProcessedDir)
	}

	var store etl.Store
	if !cfg.Pipeline.DryRun {
		pg, err := warehouse.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		log.Info("connected to warehouse",
			"host", cfg.Postgres.Host,
			"database", cfg.Postgres.Database,
			"schema", cfg.Postgres.Schema,
		)
		store = pg
	}

	p, err := etl.New(cfg, ingest.NewCSVSource(cfg), store, sink, log, etl.WithRunID(runID))
	if err != nil {
		return err
	}

	sum, err := p.Run(ctx)
	if err != nil {
		log.Error("run failed", "state", string(sum.State), "error", err)
		return err
	}
	return nil
}
