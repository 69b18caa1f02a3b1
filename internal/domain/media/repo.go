package media

import (
	"context"
)

type ImageRepository interface {
	Store(ctx context.Context, reportID int64, data []byte) error
	Get(ctx context.Context, reportID int64) ([]byte, error)
	ListForPatient(ctx context.Context, patientID int64) ([]ImageRef, error)
}
