package report

import (
	"context"
)

// Repository is the health_reports access layer. Values maps canonical
// column names to float64, string or []byte; absent keys are left to the
// column default.
type Repository interface {
	Insert(ctx context.Context, patientID int64, values map[string]any) (int64, error)
	Page(ctx context.Context, q PageQuery) ([]*View, error)
	Count(ctx context.Context, f Filter) (int, error)
	History(ctx context.Context, patientID int64) ([]*Report, error)
	SearchByPatientID(ctx context.Context, patientID int64) ([]*View, error)
	SearchByName(ctx context.Context, fragment string) ([]*View, error)
	UpdateLatest(ctx context.Context, patientID int64, column string, value *string) (int64, error)
	UpdateAllForPatient(ctx context.Context, patientID int64, values map[string]any) (int64, error)
	DeleteByPatient(ctx context.Context, patientID int64) (int64, error)
	PatientExists(ctx context.Context, patientID int64) (bool, error)
}
