package patient

import (
	"fmt"
	"strings"

	"github.com/healthmetrics/healthmetrics/internal/domain/report"
)

// ErrPatientNotFound is shared with the report package so callers can match
// one sentinel regardless of which service reported it.
var ErrPatientNotFound = report.ErrPatientNotFound

type Patient struct {
	ID     int64   `json:"patient_id"`
	Name   string  `json:"name"`
	Gender *string `json:"gender"`
}

// DeleteResult counts what a cascading delete removed.
type DeleteResult struct {
	PatientsRemoved int64 `json:"patients_removed"`
	ReportsRemoved  int64 `json:"reports_removed"`
}

// PlaceholderName is the name given to the ordinal-th row (1-based) of a
// batch whose name cell is missing.
func PlaceholderName(ordinal int) string {
	return fmt.Sprintf("Patient_%d", ordinal)
}

// NormalizeName trims and collapses whitespace. Empty or null-like names are
// replaced by PlaceholderName(ordinal); an ordinal <= 0 yields "".
func NormalizeName(raw string, ordinal int) string {
	name := strings.Join(strings.Fields(raw), " ")
	if !report.IsNullToken(name) {
		return name
	}
	if ordinal <= 0 {
		return ""
	}
	return PlaceholderName(ordinal)
}
