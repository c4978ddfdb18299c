package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-erd/migrations"
	"github.com/ekaya-inc/ekaya-erd/pkg/config"
	"github.com/ekaya-inc/ekaya-erd/pkg/database"
	"github.com/ekaya-inc/ekaya-erd/pkg/handlers"
	"github.com/ekaya-inc/ekaya-erd/pkg/idgen"
	"github.com/ekaya-inc/ekaya-erd/pkg/logging"
	"github.com/ekaya-inc/ekaya-erd/pkg/middleware"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/repositories"
	"github.com/ekaya-inc/ekaya-erd/pkg/retry"
	"github.com/ekaya-inc/ekaya-erd/pkg/services"
	"github.com/ekaya-inc/ekaya-erd/pkg/services/propagation"
	erdsql "github.com/ekaya-inc/ekaya-erd/pkg/sql"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	configPath   string
	inputPath    string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "ekaya-erd",
	Short: "Schema model service with identifier reconciliation and key propagation",
	Long: `ekaya-erd stores relational schema models and applies edits to them.

Every edit runs as one transaction: editor-side placeholder ids are reconciled to
persisted ids, and primary-key changes cascade into foreign keys of related tables.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

var propagateCmd = &cobra.Command{
	Use:   "propagate",
	Short: "Apply a before/after tree pair offline and print the propagation report",
	Long: `propagate loads the "before" tree of a YAML pair into an in-memory store, applies
the "after" tree to it and prints the resulting report. Nothing is written to a database.`,
	RunE: runPropagate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML config file")

	propagateCmd.Flags().StringVarP(&inputPath, "input", "i", "", "YAML file with before and after trees (- for stdin)")
	propagateCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format: json or yaml")
	_ = propagateCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(serveCmd, migrateCmd, propagateCmd)
	rootCmd.Version = Version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFile(configPath, Version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func newServices(ports *repositories.Ports, cfg *config.Config, gen idgen.Generator, logger *zap.Logger) (
	services.ConstraintService,
	services.RelationshipService,
	services.IndexService,
	services.ColumnService,
	services.SchemaService,
) {
	engine := propagation.NewEngine(ports, gen, propagation.Options{
		LockTargetTable: cfg.Cascade.LockTargetTable,
		MaxDepth:        cfg.Cascade.MaxDepth,
	}, logger)

	return services.NewConstraintService(ports, engine, gen, erdsql.NewExpressionValidator(), logger),
		services.NewRelationshipService(ports, engine, gen, logger),
		services.NewIndexService(ports, engine, gen, logger),
		services.NewColumnService(ports, engine, gen, logger),
		services.NewSchemaService(ports, engine, gen, logger)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("lock_target_table", cfg.Cascade.LockTargetTable),
		zap.Int("max_depth", cfg.Cascade.MaxDepth))

	ctx := cmd.Context()
	var (
		ports            *repositories.Ports
		tenantMiddleware handlers.TenantMiddleware
		storage          handlers.StorageChecker
	)

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		connStr := cfg.Database.ConnectionString()
		db, err := database.NewConnection(ctx, &database.Config{
			URL:            connStr,
			MaxConnections: cfg.Database.MaxConnections,
			MinConnections: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		logger.Info("Connected to database", zap.String("url", logging.SanitizeConnectionString(connStr)))

		ports = repositories.NewPostgresPorts()
		tenantMiddleware = database.WithTenantContext(db, logger)
		storage = db
	case config.StorageMemory:
		logger.Warn("Using in-memory storage; the schema model is lost on restart")
		ports = repositories.NewMemoryStore().Ports()
		tenantMiddleware = database.PassThrough
	}

	constraints, relationships, indexes, columns, schemas := newServices(ports, cfg, idgen.NewUUIDv7(), logger)

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.Retry.MaxRetries
	retryCfg.InitialDelay = cfg.Retry.InitialDelay()

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, storage, logger).RegisterRoutes(mux)
	handlers.NewConstraintsHandler(constraints, retryCfg, logger).RegisterRoutes(mux, tenantMiddleware)
	handlers.NewRelationshipsHandler(relationships, retryCfg, logger).RegisterRoutes(mux, tenantMiddleware)
	handlers.NewIndexesHandler(indexes, retryCfg, logger).RegisterRoutes(mux, tenantMiddleware)
	handlers.NewColumnsHandler(columns, retryCfg, logger).RegisterRoutes(mux, tenantMiddleware)
	handlers.NewSchemaHandler(schemas, retryCfg, logger).RegisterRoutes(mux, tenantMiddleware)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-erd", zap.String("addr", server.Addr), zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	connStr := cfg.Database.ConnectionString()
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger.Info("Running migrations", zap.String("url", logging.SanitizeConnectionString(connStr)))
	return database.RunMigrations(db, migrations.FS, logger)
}

func runPropagate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if outputFormat != "json" && outputFormat != "yaml" {
		return fmt.Errorf("unknown format %q, want json or yaml", outputFormat)
	}

	pair, err := readPair(cmd.InOrStdin(), inputPath)
	if err != nil {
		return err
	}
	if pair.Before == nil {
		return fmt.Errorf("%s: a before tree is required", inputPath)
	}

	ctx := cmd.Context()
	projectID := uuid.New()
	ports := repositories.NewMemoryStore().Ports()
	if err := repositories.ImportTree(ctx, ports, projectID, pair.Before); err != nil {
		return err
	}

	_, _, _, _, schemas := newServices(ports, cfg, idgen.NewUUIDv7(), logger)
	result, err := schemas.ApplyTree(ctx, projectID, pair)
	if err != nil {
		return fmt.Errorf("failed to apply tree: %w", err)
	}
	return writeResult(cmd.OutOrStdout(), result, outputFormat)
}

func readPair(stdin io.Reader, path string) (models.SnapshotPair, error) {
	var pair models.SnapshotPair

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return pair, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &pair); err != nil {
		return pair, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return pair, nil
}

// writeResult prints the report. YAML output goes through JSON first so that keys keep
// their json tag names.
func writeResult(w io.Writer, result *models.MutationResult, format string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return enc.Close()
}
