package patient

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/healthmetrics/healthmetrics/internal/domain/report"
	"github.com/healthmetrics/healthmetrics/internal/platform/apperr"
	"github.com/healthmetrics/healthmetrics/internal/platform/db"
	"github.com/healthmetrics/healthmetrics/internal/platform/metrics"
)

type Service struct {
	store   *db.Store
	repo    Repository
	reports report.Repository
	logger  zerolog.Logger
	metrics *metrics.Collector
}

func NewService(store *db.Store, repo Repository, reports report.Repository) *Service {
	return &Service{store: store, repo: repo, reports: reports, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger)      { s.logger = l }
func (s *Service) SetMetrics(m *metrics.Collector) { s.metrics = m }

// Resolve returns the id of the patient named name (already normalized),
// creating the patient on first sight.
func (s *Service) Resolve(ctx context.Context, name string, gender *string) (int64, error) {
	if name == "" {
		return 0, apperr.Validation("patient.Resolve", "patient name is empty")
	}
	return s.repo.ResolveOrCreate(ctx, name, gender)
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateFields applies field edits to the patient. Identity fields (name,
// gender) go to the patient row; every other field is written to all of the
// patient's reports. It returns the number of rows changed.
func (s *Service) UpdateFields(ctx context.Context, id int64, fields map[string]any) (int64, error) {
	const op = "patient.UpdateFields"
	if len(fields) == 0 {
		return 0, apperr.Validation(op, "no fields to update")
	}

	identity := make(map[string]any)
	reportVals := make(map[string]any)
	for key, raw := range fields {
		f, ok := report.LookupField(key)
		if !ok {
			return 0, apperr.Validation(op, "unknown field %q", key)
		}
		if !f.Editable() {
			return 0, apperr.Validation(op, "field %q cannot be edited", key)
		}
		v, err := report.ParseValue(f, raw)
		if err != nil {
			return 0, apperr.Validation(op, "%v", err)
		}
		if v == nil && (f.Kind == report.KindName || f.Kind == report.KindDate) {
			return 0, apperr.Validation(op, "field %q cannot be empty", f.Column)
		}
		if f.Table == report.TablePatients {
			identity[f.Column] = v
		} else {
			reportVals[f.Column] = v
		}
	}

	var total int64
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound(op, ErrPatientNotFound)
		}
		n, err := s.repo.UpdateIdentity(ctx, id, identity)
		if err != nil {
			return err
		}
		total += n
		n, err = s.reports.UpdateAllForPatient(ctx, id, reportVals)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		return 0, classify(op, err)
	}

	s.metrics.FieldsUpdated(total)
	s.logger.Info().Int64("patient_id", id).Int("fields", len(fields)).Int64("rows", total).Msg("patient fields updated")
	return total, nil
}

// DeletePatient removes the patient and every report it owns in one
// transaction. A missing patient yields a zero result and a NotFound error.
func (s *Service) DeletePatient(ctx context.Context, id int64) (DeleteResult, error) {
	const op = "patient.DeletePatient"
	var res DeleteResult
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		reports, err := s.reports.DeleteByPatient(ctx, id)
		if err != nil {
			return err
		}
		patients, err := s.repo.Delete(ctx, id)
		if err != nil {
			return err
		}
		if patients == 0 {
			return apperr.NotFound(op, ErrPatientNotFound)
		}
		res = DeleteResult{PatientsRemoved: patients, ReportsRemoved: reports}
		return nil
	})
	if err != nil {
		return DeleteResult{}, classify(op, err)
	}

	s.metrics.PatientDeleted(res.ReportsRemoved)
	s.logger.Info().Int64("patient_id", id).Int64("reports_removed", res.ReportsRemoved).Msg("patient deleted")
	return res, nil
}

// classify keeps already classified errors and treats the rest (begin and
// commit failures) as storage errors.
func classify(op string, err error) error {
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return apperr.Storage(op, err)
}
