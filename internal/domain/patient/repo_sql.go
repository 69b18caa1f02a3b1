package patient

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/healthmetrics/healthmetrics/internal/platform/apperr"
	"github.com/healthmetrics/healthmetrics/internal/platform/db"
)

type patientRepoSQL struct{ store *db.Store }

func NewPatientRepoSQL(store *db.Store) Repository {
	return &patientRepoSQL{store: store}
}

func (r *patientRepoSQL) conn(ctx context.Context) db.Querier {
	return r.store.Conn(ctx)
}

func (r *patientRepoSQL) ResolveOrCreate(ctx context.Context, name string, gender *string) (int64, error) {
	var id int64
	err := r.conn(ctx).QueryRowContext(ctx, r.store.Rebind(`
		INSERT INTO patients (name, gender) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET gender = COALESCE(patients.gender, excluded.gender)
		RETURNING patient_id`), name, gender).Scan(&id)
	if err != nil {
		return 0, apperr.Storage("patient.ResolveOrCreate", err)
	}
	return id, nil
}

func (r *patientRepoSQL) GetByID(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRowContext(ctx, r.store.Rebind(
		`SELECT patient_id, name, gender FROM patients WHERE patient_id = ?`), id).
		Scan(&p.ID, &p.Name, &p.Gender)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("patient.GetByID", ErrPatientNotFound)
	}
	if err != nil {
		return nil, apperr.Storage("patient.GetByID", err)
	}
	return &p, nil
}

func (r *patientRepoSQL) UpdateIdentity(ctx context.Context, id int64, values map[string]any) (int64, error) {
	const op = "patient.UpdateIdentity"
	var sets []string
	var args []any
	for _, col := range []string{"name", "gender"} {
		if v, ok := values[col]; ok {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}
	}
	if len(sets) == 0 {
		return 0, nil
	}
	args = append(args, id)

	res, err := r.conn(ctx).ExecContext(ctx, r.store.Rebind(
		`UPDATE patients SET `+strings.Join(sets, ", ")+` WHERE patient_id = ?`), args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, apperr.Validation(op, "a patient named %v already exists", values["name"])
		}
		return 0, apperr.Storage(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Storage(op, err)
	}
	return n, nil
}

func (r *patientRepoSQL) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := r.conn(ctx).ExecContext(ctx, r.store.Rebind(`DELETE FROM patients WHERE patient_id = ?`), id)
	if err != nil {
		return 0, apperr.Storage("patient.Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Storage("patient.Delete", err)
	}
	return n, nil
}

func (r *patientRepoSQL) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.conn(ctx).QueryRowContext(ctx, r.store.Rebind(`SELECT 1 FROM patients WHERE patient_id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Storage("patient.Exists", err)
	}
	return true, nil
}

func (r *patientRepoSQL) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n); err != nil {
		return 0, apperr.Storage("patient.Count", err)
	}
	return n, nil
}
