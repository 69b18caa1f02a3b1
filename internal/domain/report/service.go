package report

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/healthmetrics/healthmetrics/internal/platform/apperr"
	"github.com/healthmetrics/healthmetrics/internal/platform/metrics"
	"github.com/healthmetrics/healthmetrics/pkg/pagination"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrNoReports       = errors.New("patient has no reports")
)

type Service struct {
	repo    Repository
	logger  zerolog.Logger
	metrics *metrics.Collector
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger)      { s.logger = l }
func (s *Service) SetMetrics(m *metrics.Collector) { s.metrics = m }

// GetPage returns one page of reports, most recently recorded first, with
// the filtered total and page count.
func (s *Service) GetPage(ctx context.Context, q PageQuery) (*Page, error) {
	const op = "report.GetPage"
	if q.Limit <= 0 {
		return nil, apperr.Validation(op, "limit must be positive, got %d", q.Limit)
	}
	if q.Offset < 0 {
		return nil, apperr.Validation(op, "offset must not be negative, got %d", q.Offset)
	}
	if f := q.Filter; f.MinAge != nil && f.MaxAge != nil && *f.MinAge > *f.MaxAge {
		return nil, apperr.Validation(op, "min_age %v exceeds max_age %v", *f.MinAge, *f.MaxAge)
	}

	items, err := s.repo.Page(ctx, q)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, q.Filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*View{}
	}
	return &Page{
		Items:      items,
		Total:      total,
		Limit:      q.Limit,
		Offset:     q.Offset,
		TotalPages: pagination.TotalPages(total, q.Limit),
	}, nil
}

func (s *Service) GetTotalCount(ctx context.Context, f Filter) (int, error) {
	return s.repo.Count(ctx, f)
}

// GetHistory returns every report of the patient in chronological order.
func (s *Service) GetHistory(ctx context.Context, patientID int64) ([]*Report, error) {
	const op = "report.GetHistory"
	ok, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound(op, ErrPatientNotFound)
	}
	items, err := s.repo.History(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Report{}
	}
	return items, nil
}

// Search treats an integer query as an exact patient id and anything else
// as a case-insensitive fragment of the patient name.
func (s *Service) Search(ctx context.Context, query string) ([]*View, error) {
	const op = "report.Search"
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation(op, "search query is empty")
	}

	var (
		items []*View
		err   error
	)
	if id, convErr := strconv.ParseInt(query, 10, 64); convErr == nil {
		items, err = s.repo.SearchByPatientID(ctx, id)
	} else {
		items, err = s.repo.SearchByName(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*View{}
	}
	return items, nil
}

// UpdateLatestAnnotation writes value into column of the patient's report
// with the highest report_id. The column may be given in any accepted
// spelling.
func (s *Service) UpdateLatestAnnotation(ctx context.Context, patientID int64, column, value string) error {
	const op = "report.UpdateLatestAnnotation"
	f, ok := LookupField(column)
	if !ok || !IsAnnotationColumn(f.Column) {
		return apperr.Validation(op, "column %q is not an annotation column", column)
	}
	if strings.TrimSpace(value) == "" {
		return apperr.Validation(op, "annotation value for %q is empty", f.Column)
	}

	n, err := s.repo.UpdateLatest(ctx, patientID, f.Column, &value)
	if err != nil {
		s.metrics.Annotation(f.Column, "error")
		return err
	}
	if n > 0 {
		s.metrics.Annotation(f.Column, "ok")
		s.logger.Debug().Int64("patient_id", patientID).Str("column", f.Column).Msg("annotation written")
		return nil
	}

	s.metrics.Annotation(f.Column, "not_found")
	exists, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound(op, ErrPatientNotFound)
	}
	return apperr.NotFound(op, ErrNoReports)
}
