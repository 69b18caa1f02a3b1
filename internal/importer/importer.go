// Package importer turns uploaded spreadsheets into header-keyed rows for
// batch ingestion. The first row of a sheet is the header; every following
// non-empty row becomes one record.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoHeader          = errors.New("file has no header row")
)

// Read parses r according to the extension of filename (.csv or .xlsx).
func Read(filename string, r io.Reader) ([]map[string]any, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ReadCSV(r)
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(path, f)
}

func ReadCSV(r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return toRows(records)
}

// ReadXLSX reads the first sheet of an Excel workbook.
func ReadXLSX(r io.Reader) ([]map[string]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrNoHeader
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	// GetRows yields display text, so a date cell comes back in its number
	// format ("3/5/24 10:00"). Swap those for the underlying serial as a
	// timestamp.
	var date1904 bool
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	for r := 1; r < len(records); r++ {
		for c, cell := range records[r] {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			if ts, ok := dateCell(f, sheet, c+1, r+1, date1904); ok {
				records[r][c] = ts
			}
		}
	}
	return toRows(records)
}

const timestampLayout = "2006-01-02 15:04:05"

// dateCell returns the cell as a timestamp when it holds a number under a
// date or time format.
func dateCell(f *excelize.File, sheet string, col, row int, date1904 bool) (string, bool) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", false
	}
	idx, err := f.GetCellStyle(sheet, ref)
	if err != nil || idx == 0 {
		return "", false
	}
	style, err := f.GetStyle(idx)
	if err != nil || !isDateFormat(style) {
		return "", false
	}
	raw, err := f.GetCellValue(sheet, ref, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", false
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return "", false
	}
	return t.Round(time.Second).Format(timestampLayout), true
}

// Literal text and bracketed sections ([Red], [$-409]) of a format code.
var fmtNoise = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]`)

func isDateFormat(style *excelize.Style) bool {
	switch id := style.NumFmt; {
	case id >= 14 && id <= 22, id >= 45 && id <= 47, id >= 27 && id <= 36, id >= 50 && id <= 58:
		return true
	}
	if style.CustomNumFmt == nil {
		return false
	}
	code := strings.ToLower(fmtNoise.ReplaceAllString(*style.CustomNumFmt, ""))
	return strings.ContainsAny(code, "ydh")
}

// toRows maps each data row onto the header. Blank cells are left out so
// they count as missing values; rows with no values at all are skipped.
func toRows(records [][]string) ([]map[string]any, error) {
	if len(records) == 0 {
		return nil, ErrNoHeader
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([]map[string]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]any, len(header))
		for i, cell := range rec {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if cell = strings.TrimSpace(cell); cell != "" {
				row[header[i]] = cell
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
