package ingest

import (
	"errors"
)

// ErrPartialBatch marks a batch in which at least one row was not inserted.
var ErrPartialBatch = errors.New("batch partially inserted")

// Row is one record keyed by column name. Keys may use the presentation
// spelling ("Blood Pressure") or the store spelling ("blood_pressure").
type Row map[string]any

// Failure describes a row that was not inserted. Index is the 0-based
// position of the row in the batch.
type Failure struct {
	Index  int    `json:"index"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// BatchReport summarizes one InsertBatch call.
type BatchReport struct {
	Received       int            `json:"received"`
	Inserted       int            `json:"inserted"`
	Failures       []Failure      `json:"failures"`
	IgnoredColumns []string       `json:"ignored_columns"`
	Imputed        map[string]int `json:"imputed"`
	ReportIDs      []int64        `json:"report_ids"`
}

func newBatchReport(received int) *BatchReport {
	return &BatchReport{
		Received:       received,
		Failures:       []Failure{},
		IgnoredColumns: []string{},
		Imputed:        map[string]int{},
		ReportIDs:      []int64{},
	}
}
