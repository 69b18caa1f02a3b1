package report

import (
	"strings"
)

// FieldKind tells ingestion how to parse and impute a column.
type FieldKind int

const (
	KindIdentifier FieldKind = iota
	KindName
	KindNumeric
	KindCategorical
	KindText
	KindDate
	KindBinary
)

// Table names.
const (
	TablePatients = "patients"
	TableReports  = "health_reports"
)

// Field describes one logical record field: its store column, the spelling
// the presentation layer uses, and accepted aliases.
type Field struct {
	Column  string
	Label   string
	Table   string
	Kind    FieldKind
	Aliases []string
}

// Editable reports whether UpdateFields may write the field.
func (f Field) Editable() bool {
	return f.Kind != KindIdentifier && f.Kind != KindBinary
}

// Fields is the fixed column mapping, in display order.
var Fields = []Field{
	{Column: "patient_id", Label: "Patient ID", Table: TablePatients, Kind: KindIdentifier, Aliases: []string{"id"}},
	{Column: "report_id", Label: "Report ID", Table: TableReports, Kind: KindIdentifier},
	{Column: "name", Label: "Name", Table: TablePatients, Kind: KindName, Aliases: []string{"patient name", "patient"}},
	{Column: "gender", Label: "Gender", Table: TablePatients, Kind: KindCategorical, Aliases: []string{"sex"}},
	{Column: "age", Label: "Age", Table: TableReports, Kind: KindNumeric},
	{Column: "blood_pressure", Label: "Blood Pressure", Table: TableReports, Kind: KindNumeric},
	{Column: "cholesterol_level", Label: "Cholesterol Level", Table: TableReports, Kind: KindNumeric},
	{Column: "bmi", Label: "BMI", Table: TableReports, Kind: KindNumeric},
	{Column: "sleep_hours", Label: "Sleep Hours", Table: TableReports, Kind: KindNumeric},
	{Column: "triglyceride_level", Label: "Triglyceride Level", Table: TableReports, Kind: KindNumeric},
	{Column: "fasting_blood_sugar", Label: "Fasting Blood Sugar", Table: TableReports, Kind: KindNumeric},
	{Column: "crp_level", Label: "CRP Level", Table: TableReports, Kind: KindNumeric},
	{Column: "homocysteine_level", Label: "Homocysteine Level", Table: TableReports, Kind: KindNumeric},
	{Column: "heart_disease_status", Label: "Heart Disease Status", Table: TableReports, Kind: KindCategorical, Aliases: []string{"status"}},
	{Column: "ecg_signal", Label: "ECG Signal", Table: TableReports, Kind: KindText, Aliases: []string{"ecg"}},
	{Column: "eeg_signal", Label: "EEG Signal", Table: TableReports, Kind: KindText, Aliases: []string{"eeg"}},
	{Column: "date_recorded", Label: "Date Recorded", Table: TableReports, Kind: KindDate, Aliases: []string{"date"}},
	{Column: "image_data", Label: "Image Data", Table: TableReports, Kind: KindBinary, Aliases: []string{"image"}},
	{Column: ColumnFFTMagnitude, Label: "FFT Magnitude", Table: TableReports, Kind: KindText, Aliases: []string{"fft"}},
	{Column: ColumnCorrelationSummary, Label: "Correlation Summary", Table: TableReports, Kind: KindText, Aliases: []string{"correlation"}},
}

// Annotation columns written by UpdateLatestAnnotation.
const (
	ColumnFFTMagnitude       = "fft_magnitude"
	ColumnCorrelationSummary = "correlation_summary"
)

var fieldIndex = buildFieldIndex()

func buildFieldIndex() map[string]Field {
	idx := make(map[string]Field, len(Fields)*3)
	for _, f := range Fields {
		idx[normalizeKey(f.Column)] = f
		idx[normalizeKey(f.Label)] = f
		for _, a := range f.Aliases {
			idx[normalizeKey(a)] = f
		}
	}
	return idx
}

// normalizeKey folds case and treats spaces, underscores and hyphens as the
// same separator, so "Blood Pressure", "blood_pressure" and "BLOOD-PRESSURE"
// share one key.
func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// LookupField resolves a presentation or canonical column spelling.
func LookupField(name string) (Field, bool) {
	f, ok := fieldIndex[normalizeKey(name)]
	return f, ok
}

// NumericColumns returns the numeric vitals in display order.
func NumericColumns() []string {
	var cols []string
	for _, f := range Fields {
		if f.Kind == KindNumeric {
			cols = append(cols, f.Column)
		}
	}
	return cols
}

// IsAnnotationColumn reports whether col may be targeted by
// UpdateLatestAnnotation.
func IsAnnotationColumn(col string) bool {
	return col == ColumnFFTMagnitude || col == ColumnCorrelationSummary
}
