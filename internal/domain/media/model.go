package media

import (
	"errors"
)

var (
	ErrReportNotFound = errors.New("report not found")
	ErrNoImage        = errors.New("report has no image")
)

// ImageRef identifies a stored image without its bytes.
type ImageRef struct {
	ReportID     int64  `json:"report_id"`
	DateRecorded string `json:"date_recorded"`
}
