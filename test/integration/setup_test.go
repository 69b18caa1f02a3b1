package integration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/healthmetrics/healthmetrics/internal/domain/ingest"
	"github.com/healthmetrics/healthmetrics/internal/domain/media"
	"github.com/healthmetrics/healthmetrics/internal/domain/patient"
	"github.com/healthmetrics/healthmetrics/internal/domain/report"
	"github.com/healthmetrics/healthmetrics/internal/platform/db"
)

// databaseURL is the Postgres instance under test. Empty means the suite
// is skipped.
var databaseURL string

// TestMain uses HEALTHMETRICS_TEST_DATABASE_URL when set. With
// HEALTHMETRICS_TEST_DOCKER=1 it starts a container instead.
func TestMain(m *testing.M) {
	databaseURL = os.Getenv("HEALTHMETRICS_TEST_DATABASE_URL")
	cleanup := func() {}
	if databaseURL == "" && os.Getenv("HEALTHMETRICS_TEST_DOCKER") == "1" {
		url, stop, err := startPostgresContainer(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
			os.Exit(1)
		}
		databaseURL, cleanup = url, stop
	}
	code := m.Run()
	cleanup()
	os.Exit(code)
}

type services struct {
	store    *db.Store
	reports  *report.Service
	patients *patient.Service
	ingest   *ingest.Service
	media    *media.Service
}

// setup opens the Postgres store, brings the schema current and empties
// both tables.
func setup(t *testing.T) *services {
	t.Helper()
	if databaseURL == "" {
		t.Skip("set HEALTHMETRICS_TEST_DATABASE_URL or HEALTHMETRICS_TEST_DOCKER=1 to run postgres tests")
	}
	ctx := context.Background()
	store, err := db.OpenPostgres(ctx, databaseURL, 4, 1)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	migrator, err := db.NewDefaultMigrator(store)
	if err != nil {
		t.Fatalf("migrator: %v", err)
	}
	if err := migrator.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := store.DB().ExecContext(ctx, "TRUNCATE health_reports, patients RESTART IDENTITY"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	logger := zerolog.Nop()
	reportRepo := report.NewReportRepoSQL(store)
	s := &services{store: store, reports: report.NewService(reportRepo)}
	s.patients = patient.NewService(store, patient.NewPatientRepoSQL(store), reportRepo)
	s.ingest = ingest.NewService(store, s.patients, reportRepo)
	s.ingest.SetLogger(logger)
	s.media = media.NewService(media.NewImageRepoSQL(store), reportRepo)
	return s
}
