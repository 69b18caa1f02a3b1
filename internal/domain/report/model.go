package report

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical text form of date_recorded. Lexicographic
// order on it equals chronological order.
const DateLayout = "2006-01-02 15:04:05"

// Report is one health_reports row.
type Report struct {
	ID                 int64    `json:"report_id"`
	PatientID          int64    `json:"patient_id"`
	Age                *float64 `json:"age"`
	BloodPressure      *float64 `json:"blood_pressure"`
	CholesterolLevel   *float64 `json:"cholesterol_level"`
	BMI                *float64 `json:"bmi"`
	SleepHours         *float64 `json:"sleep_hours"`
	TriglycerideLevel  *float64 `json:"triglyceride_level"`
	FastingBloodSugar  *float64 `json:"fasting_blood_sugar"`
	CRPLevel           *float64 `json:"crp_level"`
	HomocysteineLevel  *float64 `json:"homocysteine_level"`
	HeartDiseaseStatus *string  `json:"heart_disease_status"`
	ECGSignal          *string  `json:"ecg_signal"`
	EEGSignal          *string  `json:"eeg_signal"`
	DateRecorded       string   `json:"date_recorded"`
	FFTMagnitude       *string  `json:"fft_magnitude"`
	CorrelationSummary *string  `json:"correlation_summary"`
	HasImage           bool     `json:"has_image"`
}

// View is a report joined with its patient's identity, as listed by the
// paginated grid and search. Name and Gender are nil for orphaned reports.
type View struct {
	Report
	Name   *string `json:"name"`
	Gender *string `json:"gender"`
}

// Filter narrows the paginated listing and its count.
type Filter struct {
	MinAge *float64
	MaxAge *float64
	Gender *string
	Status *string
}

// PageQuery selects one page of the listing.
type PageQuery struct {
	Limit  int
	Offset int
	Filter Filter
}

// Page is one page of the listing with the totals needed for navigation.
type Page struct {
	Items      []*View `json:"items"`
	Total      int     `json:"total"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
	TotalPages int     `json:"total_pages"`
}

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006 15:04",
	"1/2/06 15:04",
	"1/2/06",
}

// ParseDate canonicalizes a date_recorded value.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q", s)
}
