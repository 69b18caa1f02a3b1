package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/healthmetrics/healthmetrics/internal/config"
	"github.com/healthmetrics/healthmetrics/internal/domain/ingest"
	"github.com/healthmetrics/healthmetrics/internal/platform/apperr"
	"github.com/healthmetrics/healthmetrics/internal/platform/db/dbtest"
)

func testConfig() *config.Config {
	return &config.Config{
		Port: "8000", Env: "test", LogLevel: "info", DBDriver: "sqlite",
		BodyLimit: "1M", UploadLimit: "8M", ImageMaxBytes: 1 << 20,
		DefaultPageSize: 50, MetricsNamespace: "hm_test",
		CORSOrigins: []string{"http://localhost:3000"},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_EndToEnd(t *testing.T) {
	store := dbtest.Open(t)
	e := newServer(testConfig(), store, zerolog.Nop(), prometheus.NewRegistry())

	rec := do(t, e, http.MethodPost, "/api/v1/reports/batch",
		`{"rows": [{"Name": "A", "Age": 30}, {"Name": "A", "Age": null}, {"Name": "B", "Age": 50}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("batch: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}

	rec = do(t, e, http.MethodGet, "/api/v1/reports?limit=2", "")
	var page struct {
		Data       []map[string]any `json:"data"`
		Total      int              `json:"total"`
		TotalPages int              `json:"total_pages"`
		NextOffset *int             `json:"next_offset"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 3 || len(page.Data) != 2 || page.TotalPages != 2 {
		t.Errorf("unexpected page total=%d items=%d pages=%d", page.Total, len(page.Data), page.TotalPages)
	}
	if page.NextOffset == nil || *page.NextOffset != 2 {
		t.Errorf("expected next_offset 2, got %v", page.NextOffset)
	}

	rec = do(t, e, http.MethodGet, "/api/v1/reports/search?q=a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", rec.Code)
	}

	rec = do(t, e, http.MethodPut, "/api/v1/patients/1/annotations/correlation_summary", `{"value": "r=0.82"}`)
	if rec.Code != http.StatusNoContent {
		t.Errorf("annotation: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, http.MethodGet, "/api/v1/patients/1/history", "")
	var history struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Data) != 2 || history.Data[1]["age"] != 40.0 || history.Data[1]["correlation_summary"] != "r=0.82" {
		t.Errorf("unexpected history %v", history.Data)
	}

	rec = do(t, e, http.MethodDelete, "/api/v1/patients/1", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"reports_removed":2`) {
		t.Errorf("delete: got %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, e, http.MethodDelete, "/api/v1/patients/1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	store := dbtest.Open(t)
	e := newServer(testConfig(), store, zerolog.Nop(), prometheus.NewRegistry())

	if rec := do(t, e, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("/health: expected 200, got %d", rec.Code)
	}
	if rec := do(t, e, http.MethodGet, "/health/db", ""); rec.Code != http.StatusOK {
		t.Errorf("/health/db: expected 200, got %d", rec.Code)
	}
	do(t, e, http.MethodGet, "/api/v1/reports", "")

	rec := do(t, e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"hm_test_http_requests_total", "hm_test_db_open_connections"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}

func TestServer_BodyLimit(t *testing.T) {
	store := dbtest.Open(t)
	cfg := testConfig()
	cfg.BodyLimit = "16"
	e := newServer(cfg, store, zerolog.Nop(), prometheus.NewRegistry())

	rec := do(t, e, http.MethodPatch, "/api/v1/patients/1", `{"age": 1, "bmi": 2, "sleep_hours": 3}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}

	rec = do(t, e, http.MethodPost, "/api/v1/reports/batch", `{"rows": [{"name": "Large", "age": 33, "bmi": 24.1}]}`)
	if rec.Code != http.StatusOK {
		t.Errorf("batch: expected the upload limit to apply, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "store.db"))

	csvPath := filepath.Join(dir, "vitals.csv")
	csv := "Name,Age,Blood Pressure\nA,30,120\nA,,\nB,50,140\n"
	if err := os.WriteFile(csvPath, []byte(csv), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"import", csvPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("import: %v", err)
	}
	var rep ingest.BatchReport
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatalf("decode report %q: %v", out.String(), err)
	}
	if rep.Inserted != 3 || rep.Imputed["age"] != 1 || rep.Imputed["blood_pressure"] != 1 {
		t.Errorf("unexpected report %+v", rep)
	}

	out.Reset()
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"migrate", "status"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("migrate status: %v", err)
	}
	if !strings.Contains(out.String(), "applied") || strings.Contains(out.String(), "pending") {
		t.Errorf("expected every migration applied, got:\n%s", out.String())
	}
}

func TestImportCommand_MissingFile(t *testing.T) {
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "store.db"))
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"import", filepath.Join(t.TempDir(), "missing.csv")})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExitCode(t *testing.T) {
	partial := apperr.E(apperr.KindPartialBatch, "ingest.InsertBatch", ingest.ErrPartialBatch)
	if got := exitCode(partial); got != 2 {
		t.Errorf("expected 2 for partial batch, got %d", got)
	}
	if got := exitCode(errors.New("boom")); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}
