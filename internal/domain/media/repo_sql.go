package media

import (
	"context"
	"database/sql"
	"errors"

	"github.com/healthmetrics/healthmetrics/internal/platform/apperr"
	"github.com/healthmetrics/healthmetrics/internal/platform/db"
)

type imageRepoSQL struct{ store *db.Store }

func NewImageRepoSQL(store *db.Store) ImageRepository {
	return &imageRepoSQL{store: store}
}

func (r *imageRepoSQL) conn(ctx context.Context) db.Querier {
	return r.store.Conn(ctx)
}

func (r *imageRepoSQL) Store(ctx context.Context, reportID int64, data []byte) error {
	const op = "media.Store"
	res, err := r.conn(ctx).ExecContext(ctx, r.store.Rebind(
		`UPDATE health_reports SET image_data = ? WHERE report_id = ?`), data, reportID)
	if err != nil {
		return apperr.Storage(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage(op, err)
	}
	if n == 0 {
		return apperr.NotFound(op, ErrReportNotFound)
	}
	return nil
}

func (r *imageRepoSQL) Get(ctx context.Context, reportID int64) ([]byte, error) {
	const op = "media.Get"
	var data []byte
	err := r.conn(ctx).QueryRowContext(ctx, r.store.Rebind(
		`SELECT image_data FROM health_reports WHERE report_id = ?`), reportID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(op, ErrReportNotFound)
	}
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	if data == nil {
		return nil, apperr.NotFound(op, ErrNoImage)
	}
	return data, nil
}

func (r *imageRepoSQL) ListForPatient(ctx context.Context, patientID int64) ([]ImageRef, error) {
	const op = "media.ListForPatient"
	rows, err := r.conn(ctx).QueryContext(ctx, r.store.Rebind(`
		SELECT report_id, date_recorded FROM health_reports
		WHERE patient_id = ? AND image_data IS NOT NULL
		ORDER BY report_id ASC`), patientID)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	defer rows.Close()

	refs := []ImageRef{}
	for rows.Next() {
		var ref ImageRef
		if err := rows.Scan(&ref.ReportID, &ref.DateRecorded); err != nil {
			return nil, apperr.Storage(op, err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(op, err)
	}
	return refs, nil
}
