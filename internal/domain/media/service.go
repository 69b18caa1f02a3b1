package media

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/healthmetrics/healthmetrics/internal/domain/report"
	"github.com/healthmetrics/healthmetrics/internal/platform/apperr"
	"github.com/healthmetrics/healthmetrics/internal/platform/metrics"
)

// DefaultMaxBytes bounds a single stored image.
const DefaultMaxBytes = 10 << 20

// Service stores opaque image payloads on reports. It never inspects the
// bytes.
type Service struct {
	repo     ImageRepository
	reports  report.Repository
	maxBytes int
	logger   zerolog.Logger
	metrics  *metrics.Collector
}

func NewService(repo ImageRepository, reports report.Repository) *Service {
	return &Service{repo: repo, reports: reports, maxBytes: DefaultMaxBytes, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger)      { s.logger = l }
func (s *Service) SetMetrics(m *metrics.Collector) { s.metrics = m }

// SetMaxBytes changes the size limit; n <= 0 keeps the default.
func (s *Service) SetMaxBytes(n int) {
	if n > 0 {
		s.maxBytes = n
	}
}

func (s *Service) MaxBytes() int { return s.maxBytes }

// StoreImage attaches data to the report, replacing any previous image.
func (s *Service) StoreImage(ctx context.Context, reportID int64, data []byte) error {
	const op = "media.StoreImage"
	if len(data) == 0 {
		return apperr.Validation(op, "image is empty")
	}
	if len(data) > s.maxBytes {
		return apperr.Validation(op, "image is %d bytes, limit is %d", len(data), s.maxBytes)
	}
	if err := s.repo.Store(ctx, reportID, data); err != nil {
		return err
	}
	s.metrics.ImageStored(len(data))
	s.logger.Info().Int64("report_id", reportID).Int("bytes", len(data)).Msg("image stored")
	return nil
}

// RetrieveImage returns the image bytes of a report. A missing report is
// ErrReportNotFound and a report without an image is ErrNoImage.
func (s *Service) RetrieveImage(ctx context.Context, reportID int64) ([]byte, error) {
	return s.repo.Get(ctx, reportID)
}

// ListImages returns the reports of a patient that carry an image, in
// report_id order.
func (s *Service) ListImages(ctx context.Context, patientID int64) ([]ImageRef, error) {
	const op = "media.ListImages"
	exists, err := s.reports.PatientExists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound(op, report.ErrPatientNotFound)
	}
	return s.repo.ListForPatient(ctx, patientID)
}
