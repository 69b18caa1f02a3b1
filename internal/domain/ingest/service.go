package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthmetrics/healthmetrics/internal/domain/patient"
	"github.com/healthmetrics/healthmetrics/internal/domain/report"
	"github.com/healthmetrics/healthmetrics/internal/platform/apperr"
	"github.com/healthmetrics/healthmetrics/internal/platform/db"
	"github.com/healthmetrics/healthmetrics/internal/platform/metrics"
)

// DefaultMaxImageBytes bounds images written through InsertSingle.
const DefaultMaxImageBytes = 10 << 20

// imputedCategorical lists the categorical columns filled with the batch mode.
var imputedCategorical = []string{"gender", "heart_disease_status"}

type Service struct {
	store         *db.Store
	patients      *patient.Service
	reports       report.Repository
	logger        zerolog.Logger
	metrics       *metrics.Collector
	maxImageBytes int
}

func NewService(store *db.Store, patients *patient.Service, reports report.Repository) *Service {
	return &Service{
		store:         store,
		patients:      patients,
		reports:       reports,
		logger:        zerolog.Nop(),
		maxImageBytes: DefaultMaxImageBytes,
	}
}

func (s *Service) SetLogger(l zerolog.Logger)      { s.logger = l }
func (s *Service) SetMetrics(m *metrics.Collector) { s.metrics = m }

// SetMaxImageBytes changes the image size limit; n <= 0 keeps the default.
func (s *Service) SetMaxImageBytes(n int) {
	if n > 0 {
		s.maxImageBytes = n
	}
}

// parsedRow is a row after column normalization and cell parsing. Values are
// keyed by store column; a nil value is a missing cell.
type parsedRow struct {
	values map[string]any
	err    error
}

// normalizeRow maps keys to store columns and parses every cell. Keys that
// are unknown, or that name identifiers or binary data, are returned in
// ignored.
func normalizeRow(row Row) (parsed parsedRow, ignored []string) {
	parsed.values = make(map[string]any, len(row))
	seen := make(map[string]string, len(row))
	for key, raw := range row {
		f, ok := report.LookupField(key)
		if !ok || f.Kind == report.KindIdentifier || f.Kind == report.KindBinary {
			ignored = append(ignored, key)
			continue
		}
		if prev, dup := seen[f.Column]; dup {
			if parsed.err == nil {
				parsed.err = fmt.Errorf("columns %q and %q both map to %s", prev, key, f.Column)
			}
			continue
		}
		seen[f.Column] = key
		v, err := report.ParseValue(f, raw)
		if err != nil {
			if parsed.err == nil {
				parsed.err = err
			}
			continue
		}
		parsed.values[f.Column] = v
	}
	return parsed, ignored
}

// impute fills missing numeric cells with the batch median and missing
// categorical cells with the batch mode. Only columns present in the batch
// are considered and rows that failed to parse contribute no statistics.
// It returns the number of cells filled per column.
func impute(rows []parsedRow) map[string]int {
	present := make(map[string]bool)
	for _, r := range rows {
		for col := range r.values {
			present[col] = true
		}
	}
	counts := make(map[string]int)

	for _, col := range report.NumericColumns() {
		if !present[col] {
			continue
		}
		var vals []float64
		for _, r := range rows {
			if v, ok := r.values[col].(float64); ok && r.err == nil {
				vals = append(vals, v)
			}
		}
		m, ok := median(vals)
		if !ok {
			continue
		}
		counts[col] += fill(rows, col, m)
	}

	for _, col := range imputedCategorical {
		if !present[col] {
			continue
		}
		var vals []string
		for _, r := range rows {
			if v, ok := r.values[col].(string); ok && r.err == nil && v != "" {
				vals = append(vals, v)
			}
		}
		m, ok := mode(vals)
		if !ok {
			continue
		}
		counts[col] += fill(rows, col, m)
	}

	for col, n := range counts {
		if n == 0 {
			delete(counts, col)
		}
	}
	return counts
}

func fill(rows []parsedRow, col string, v any) int {
	n := 0
	for _, r := range rows {
		if r.err != nil {
			continue
		}
		if cur, ok := r.values[col]; !ok || cur == nil || cur == "" {
			r.values[col] = v
			n++
		}
	}
	return n
}

// splitValues separates identity fields from report fields and drops
// missing values so absent fields are left out of the INSERT.
func splitValues(values map[string]any) (name string, gender *string, fields map[string]any) {
	fields = make(map[string]any, len(values))
	for col, v := range values {
		if v == nil {
			continue
		}
		switch col {
		case "name":
			name, _ = v.(string)
		case "gender":
			if g, ok := v.(string); ok && g != "" {
				gender = &g
			}
		default:
			fields[col] = v
		}
	}
	return name, gender, fields
}

// InsertBatch inserts every row of a batch, imputing missing values from the
// batch itself. Rows are committed one at a time and a failing row does not
// stop the batch. The returned error is nil when every row was inserted and
// a PartialBatch error otherwise; the report is always returned.
func (s *Service) InsertBatch(ctx context.Context, rows []Row) (*BatchReport, error) {
	const op = "ingest.InsertBatch"
	start := time.Now()
	rep := newBatchReport(len(rows))
	defer func() { s.metrics.ObserveBatch(time.Since(start).Seconds()) }()

	parsed := make([]parsedRow, len(rows))
	ignored := make(map[string]bool)
	for i, row := range rows {
		var ign []string
		parsed[i], ign = normalizeRow(row)
		for _, k := range ign {
			ignored[k] = true
		}
	}
	for k := range ignored {
		rep.IgnoredColumns = append(rep.IgnoredColumns, k)
	}
	sort.Strings(rep.IgnoredColumns)

	rep.Imputed = impute(parsed)
	for col, n := range rep.Imputed {
		s.metrics.Imputed(col, n)
	}

	for i, pr := range parsed {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("%s: %w", op, err)
		}
		id, err := s.insertRow(ctx, i, pr)
		if err != nil {
			kind := apperr.KindOf(err).String()
			rep.Failures = append(rep.Failures, Failure{Index: i, Kind: kind, Reason: err.Error()})
			s.metrics.RowFailed()
			s.logger.Warn().Err(err).Int("row", i).Str("kind", kind).Msg("batch row rejected")
			continue
		}
		rep.Inserted++
		rep.ReportIDs = append(rep.ReportIDs, id)
		s.metrics.RowInserted()
	}

	s.logger.Info().
		Int("received", rep.Received).
		Int("inserted", rep.Inserted).
		Int("failed", len(rep.Failures)).
		Strs("ignored_columns", rep.IgnoredColumns).
		Dur("elapsed", time.Since(start)).
		Msg("batch ingested")

	if len(rep.Failures) > 0 {
		return rep, apperr.E(apperr.KindPartialBatch, op,
			fmt.Errorf("%w: %d of %d rows failed", ErrPartialBatch, len(rep.Failures), rep.Received))
	}
	return rep, nil
}

func (s *Service) insertRow(ctx context.Context, index int, pr parsedRow) (int64, error) {
	const op = "ingest.insertRow"
	if pr.err != nil {
		return 0, apperr.Validation(op, "%v", pr.err)
	}
	rawName, gender, fields := splitValues(pr.values)
	name := patient.NormalizeName(rawName, index+1)
	patientID, err := s.patients.Resolve(ctx, name, gender)
	if err != nil {
		return 0, err
	}
	return s.reports.Insert(ctx, patientID, fields)
}

// InsertSingle inserts one manually entered record, with optional image
// bytes, in a single transaction. Unlike InsertBatch it rejects unknown
// columns and performs no imputation.
func (s *Service) InsertSingle(ctx context.Context, record Row, image []byte) (int64, error) {
	const op = "ingest.InsertSingle"
	if len(image) > s.maxImageBytes {
		return 0, apperr.Validation(op, "image is %d bytes, limit is %d", len(image), s.maxImageBytes)
	}
	pr, ignored := normalizeRow(record)
	if len(ignored) > 0 {
		sort.Strings(ignored)
		return 0, apperr.Validation(op, "unsupported fields: %v", ignored)
	}
	if pr.err != nil {
		return 0, apperr.Validation(op, "%v", pr.err)
	}
	rawName, gender, fields := splitValues(pr.values)
	name := patient.NormalizeName(rawName, 0)
	if name == "" {
		return 0, apperr.Validation(op, "patient name is required")
	}
	if len(image) > 0 {
		fields["image_data"] = image
	}

	var reportID int64
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		patientID, err := s.patients.Resolve(ctx, name, gender)
		if err != nil {
			return err
		}
		reportID, err = s.reports.Insert(ctx, patientID, fields)
		return err
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.Storage(op, err)
		}
		return 0, err
	}

	s.metrics.RowInserted()
	if len(image) > 0 {
		s.metrics.ImageStored(len(image))
	}
	s.logger.Info().Int64("report_id", reportID).Bool("image", len(image) > 0).Msg("report inserted")
	return reportID, nil
}
