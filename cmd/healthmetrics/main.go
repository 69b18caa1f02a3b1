package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthmetrics/healthmetrics/internal/config"
	"github.com/healthmetrics/healthmetrics/internal/domain/ingest"
	"github.com/healthmetrics/healthmetrics/internal/domain/media"
	"github.com/healthmetrics/healthmetrics/internal/domain/patient"
	"github.com/healthmetrics/healthmetrics/internal/domain/report"
	"github.com/healthmetrics/healthmetrics/internal/importer"
	"github.com/healthmetrics/healthmetrics/internal/platform/apperr"
	"github.com/healthmetrics/healthmetrics/internal/platform/db"
	"github.com/healthmetrics/healthmetrics/internal/platform/metrics"
	"github.com/healthmetrics/healthmetrics/internal/platform/middleware"
	"github.com/healthmetrics/healthmetrics/internal/platform/validate"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "healthmetrics",
		Short:        "Patient health record store and API",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the store schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations and column additions",
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetInt("to")
			ctx := cmd.Context()
			store, migrator, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if to > 0 {
				n, err := migrator.UpTo(ctx, to)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) up to version %d.\n", n, to)
				return nil
			}
			if err := migrator.EnsureSchema(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
	upCmd.Flags().Int("to", 0, "Stop after this migration version (0 applies everything)")
	cmd.AddCommand(upCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, migrator, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})
	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv|file.xlsx>",
		Short: "Ingest a spreadsheet as one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			records, err := importer.ReadFile(args[0])
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			a := newApp(store, cfg, newLogger(cfg, os.Stderr), nil)
			rows := make([]ingest.Row, len(records))
			for i, r := range records {
				rows[i] = ingest.Row(r)
			}
			rep, err := a.ingest.InsertBatch(ctx, rows)
			if rep != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(rep); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(cfg.Level()).With().Timestamp().Logger()
}

// openStore connects to the configured store and brings its schema up to
// date, so every command sees the current columns.
func openStore(ctx context.Context, cfg *config.Config) (*db.Store, error) {
	store, err := db.Open(ctx, cfg.DBOptions())
	if err != nil {
		return nil, err
	}
	migrator, err := db.NewDefaultMigrator(store)
	if err == nil {
		err = migrator.EnsureSchema(ctx)
	}
	if err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func openMigrator(ctx context.Context) (*db.Store, *db.Migrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := db.Open(ctx, cfg.DBOptions())
	if err != nil {
		return nil, nil, err
	}
	migrator, err := db.NewDefaultMigrator(store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, migrator, nil
}

// app holds the wired services.
type app struct {
	reports  *report.Service
	patients *patient.Service
	ingest   *ingest.Service
	media    *media.Service
}

func newApp(store *db.Store, cfg *config.Config, logger zerolog.Logger, m *metrics.Collector) *app {
	reportRepo := report.NewReportRepoSQL(store)

	reportSvc := report.NewService(reportRepo)
	reportSvc.SetLogger(logger.With().Str("component", "report").Logger())
	reportSvc.SetMetrics(m)

	patientSvc := patient.NewService(store, patient.NewPatientRepoSQL(store), reportRepo)
	patientSvc.SetLogger(logger.With().Str("component", "patient").Logger())
	patientSvc.SetMetrics(m)

	ingestSvc := ingest.NewService(store, patientSvc, reportRepo)
	ingestSvc.SetLogger(logger.With().Str("component", "ingest").Logger())
	ingestSvc.SetMetrics(m)
	ingestSvc.SetMaxImageBytes(cfg.ImageMaxBytes)

	mediaSvc := media.NewService(media.NewImageRepoSQL(store), reportRepo)
	mediaSvc.SetLogger(logger.With().Str("component", "media").Logger())
	mediaSvc.SetMetrics(m)
	mediaSvc.SetMaxBytes(cfg.ImageMaxBytes)

	return &app{reports: reportSvc, patients: patientSvc, ingest: ingestSvc, media: mediaSvc}
}

// newServer builds the echo instance with middleware and every route.
func newServer(cfg *config.Config, store *db.Store, logger zerolog.Logger, reg *prometheus.Registry) *echo.Echo {
	m := metrics.NewCollector(cfg.MetricsNamespace, reg)
	m.TrackOpenConnections(cfg.MetricsNamespace, func() float64 {
		return float64(store.DB().Stats().OpenConnections)
	})
	a := newApp(store, cfg, logger, m)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.NewValidator()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics(m))
	e.Use(echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadLimit))
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(store))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(reg)))

	api := e.Group("/api/v1")
	report.NewHandler(a.reports, cfg.DefaultPageSize).RegisterRoutes(api)
	patient.NewHandler(a.patients).RegisterRoutes(api)
	ingest.NewHandler(a.ingest).RegisterRoutes(api)
	media.NewHandler(a.media).RegisterRoutes(api)

	return e
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open store")
		return err
	}
	defer store.Close()
	logger.Info().Str("driver", string(store.Dialect())).Msg("store ready")

	e := newServer(cfg, store, logger, metrics.NewRegistry())

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// exitCode maps a command error to a process exit status: 2 for a batch
// that was only partly ingested, 1 otherwise.
func exitCode(err error) int {
	if apperr.KindOf(err) == apperr.KindPartialBatch {
		return 2
	}
	return 1
}
