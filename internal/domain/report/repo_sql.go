package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/healthmetrics/healthmetrics/internal/platform/apperr"
	"github.com/healthmetrics/healthmetrics/internal/platform/db"
)

type reportRepoSQL struct{ store *db.Store }

func NewReportRepoSQL(store *db.Store) Repository {
	return &reportRepoSQL{store: store}
}

func (r *reportRepoSQL) conn(ctx context.Context) db.Querier {
	return r.store.Conn(ctx)
}

const reportCols = `r.report_id, r.patient_id, r.age, r.blood_pressure, r.cholesterol_level, r.bmi,
	r.sleep_hours, r.triglyceride_level, r.fasting_blood_sugar, r.crp_level, r.homocysteine_level,
	r.heart_disease_status, r.ecg_signal, r.eeg_signal, r.date_recorded,
	r.fft_magnitude, r.correlation_summary,
	CASE WHEN r.image_data IS NULL THEN 0 ELSE 1 END`

const viewCols = reportCols + `, p.name, p.gender`

const viewFrom = ` FROM health_reports r LEFT JOIN patients p ON p.patient_id = r.patient_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner, extra ...any) (*Report, error) {
	var rp Report
	dest := []any{&rp.ID, &rp.PatientID, &rp.Age, &rp.BloodPressure, &rp.CholesterolLevel, &rp.BMI,
		&rp.SleepHours, &rp.TriglycerideLevel, &rp.FastingBloodSugar, &rp.CRPLevel, &rp.HomocysteineLevel,
		&rp.HeartDiseaseStatus, &rp.ECGSignal, &rp.EEGSignal, &rp.DateRecorded,
		&rp.FFTMagnitude, &rp.CorrelationSummary, &rp.HasImage}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &rp, nil
}

func scanView(row scanner) (*View, error) {
	var v View
	rp, err := scanReport(row, &v.Name, &v.Gender)
	if err != nil {
		return nil, err
	}
	v.Report = *rp
	return &v, nil
}

func (r *reportRepoSQL) queryViews(ctx context.Context, op, query string, args ...any) ([]*View, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, r.store.Rebind(query), args...)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	var items []*View
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, apperr.Storage(op, err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}
	return items, nil
}

// orderedColumns returns the keys of values in field registry order so
// generated SQL is deterministic.
func orderedColumns(values map[string]any) []string {
	cols := make([]string, 0, len(values))
	for _, f := range Fields {
		if f.Table != TableReports {
			continue
		}
		if _, ok := values[f.Column]; ok {
			cols = append(cols, f.Column)
		}
	}
	return cols
}

func (r *reportRepoSQL) Insert(ctx context.Context, patientID int64, values map[string]any) (int64, error) {
	const op = "report.Insert"
	cols := []string{"patient_id"}
	args := []any{patientID}
	for _, c := range orderedColumns(values) {
		if c == "patient_id" || c == "report_id" {
			continue
		}
		cols = append(cols, c)
		args = append(args, values[c])
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf(`INSERT INTO health_reports (%s) VALUES (%s) RETURNING report_id`,
		strings.Join(cols, ", "), placeholders)

	var id int64
	if err := r.conn(ctx).QueryRowContext(ctx, r.store.Rebind(query), args...).Scan(&id); err != nil {
		return 0, apperr.Storage(op, err)
	}
	return id, nil
}

func filterClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.MinAge != nil {
		conds = append(conds, "r.age >= ?")
		args = append(args, *f.MinAge)
	}
	if f.MaxAge != nil {
		conds = append(conds, "r.age <= ?")
		args = append(args, *f.MaxAge)
	}
	if f.Gender != nil {
		conds = append(conds, "p.gender = ?")
		args = append(args, *f.Gender)
	}
	if f.Status != nil {
		conds = append(conds, "r.heart_disease_status = ?")
		args = append(args, *f.Status)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *reportRepoSQL) Page(ctx context.Context, q PageQuery) ([]*View, error) {
	where, args := filterClause(q.Filter)
	query := `SELECT ` + viewCols + viewFrom + where +
		` ORDER BY r.date_recorded DESC, r.report_id DESC LIMIT ? OFFSET ?`
	return r.queryViews(ctx, "report.Page", query, append(args, q.Limit, q.Offset)...)
}

func (r *reportRepoSQL) Count(ctx context.Context, f Filter) (int, error) {
	where, args := filterClause(f)
	var n int
	err := r.conn(ctx).QueryRowContext(ctx, r.store.Rebind(`SELECT COUNT(*)`+viewFrom+where), args...).Scan(&n)
	if err != nil {
		return 0, apperr.Storage("report.Count", err)
	}
	return n, nil
}

func (r *reportRepoSQL) History(ctx context.Context, patientID int64) ([]*Report, error) {
	const op = "report.History"
	rows, err := r.conn(ctx).QueryContext(ctx, r.store.Rebind(`SELECT `+reportCols+
		` FROM health_reports r WHERE r.patient_id = ? ORDER BY r.date_recorded ASC, r.report_id ASC`), patientID)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	var items []*Report
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, apperr.Storage(op, err)
		}
		items = append(items, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}
	return items, nil
}

func (r *reportRepoSQL) SearchByPatientID(ctx context.Context, patientID int64) ([]*View, error) {
	return r.queryViews(ctx, "report.SearchByPatientID", `SELECT `+viewCols+viewFrom+
		` WHERE r.patient_id = ? ORDER BY r.date_recorded DESC, r.report_id DESC`, patientID)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *reportRepoSQL) SearchByName(ctx context.Context, fragment string) ([]*View, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(fragment)) + "%"
	return r.queryViews(ctx, "report.SearchByName", `SELECT `+viewCols+viewFrom+
		` WHERE LOWER(p.name) LIKE ? ESCAPE '\' ORDER BY r.date_recorded DESC, r.report_id DESC`, pattern)
}

func (r *reportRepoSQL) UpdateLatest(ctx context.Context, patientID int64, column string, value *string) (int64, error) {
	const op = "report.UpdateLatest"
	if !IsAnnotationColumn(column) {
		return 0, apperr.Validation(op, "column %q is not an annotation column", column)
	}
	query := fmt.Sprintf(`UPDATE health_reports SET %s = ?
		WHERE report_id = (SELECT MAX(report_id) FROM health_reports WHERE patient_id = ?)`, column)
	res, err := r.conn(ctx).ExecContext(ctx, r.store.Rebind(query), value, patientID)
	if err != nil {
		return 0, apperr.Storage(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Storage(op, err)
	}
	return n, nil
}

func (r *reportRepoSQL) UpdateAllForPatient(ctx context.Context, patientID int64, values map[string]any) (int64, error) {
	const op = "report.UpdateAllForPatient"
	cols := orderedColumns(values)
	if len(cols) == 0 {
		return 0, nil
	}
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, values[c])
	}
	args = append(args, patientID)

	query := `UPDATE health_reports SET ` + strings.Join(sets, ", ") + ` WHERE patient_id = ?`
	res, err := r.conn(ctx).ExecContext(ctx, r.store.Rebind(query), args...)
	if err != nil {
		return 0, apperr.Storage(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Storage(op, err)
	}
	return n, nil
}

func (r *reportRepoSQL) DeleteByPatient(ctx context.Context, patientID int64) (int64, error) {
	const op = "report.DeleteByPatient"
	res, err := r.conn(ctx).ExecContext(ctx, r.store.Rebind(`DELETE FROM health_reports WHERE patient_id = ?`), patientID)
	if err != nil {
		return 0, apperr.Storage(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Storage(op, err)
	}
	return n, nil
}

func (r *reportRepoSQL) PatientExists(ctx context.Context, patientID int64) (bool, error) {
	var one int
	err := r.conn(ctx).QueryRowContext(ctx, r.store.Rebind(`SELECT 1 FROM patients WHERE patient_id = ?`), patientID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Storage("report.PatientExists", err)
	}
	return true, nil
}
