package patient

import (
	"context"
)

type Repository interface {
	// ResolveOrCreate returns the id of the patient called name, creating
	// it when absent. A stored NULL gender is filled from gender; a stored
	// gender is never replaced.
	ResolveOrCreate(ctx context.Context, name string, gender *string) (int64, error)
	GetByID(ctx context.Context, id int64) (*Patient, error)
	UpdateIdentity(ctx context.Context, id int64, values map[string]any) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
}
