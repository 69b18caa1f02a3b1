package report

import (
	"encoding/json"
	"math"
	"testing"
)

func TestLookupField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Blood Pressure", "blood_pressure"},
		{"blood_pressure", "blood_pressure"},
		{"  BLOOD   PRESSURE ", "blood_pressure"},
		{"Heart Disease Status", "heart_disease_status"},
		{"status", "heart_disease_status"},
		{"ECG", "ecg_signal"},
		{"eeg", "eeg_signal"},
		{"Date Recorded", "date_recorded"},
		{"patient name", "name"},
		{"CRP Level", "crp_level"},
		{"FFT Magnitude", "fft_magnitude"},
	}
	for _, tt := range tests {
		f, ok := LookupField(tt.in)
		if !ok {
			t.Errorf("LookupField(%q): not found", tt.in)
			continue
		}
		if f.Column != tt.want {
			t.Errorf("LookupField(%q) = %s, want %s", tt.in, f.Column, tt.want)
		}
	}

	if _, ok := LookupField("Favourite Colour"); ok {
		t.Error("expected unknown column to be rejected")
	}
}

func TestIsNullToken(t *testing.T) {
	for _, s := range []string{"", "  ", "nan", "NaN", "None", "NULL", "nil", "NA", "n/a", "<NA>"} {
		if !IsNullToken(s) {
			t.Errorf("IsNullToken(%q) = false", s)
		}
	}
	for _, s := range []string{"0", "Nancy", "no", "Yes"} {
		if IsNullToken(s) {
			t.Errorf("IsNullToken(%q) = true", s)
		}
	}
}

func TestParseValue(t *testing.T) {
	age, _ := LookupField("age")
	date, _ := LookupField("date_recorded")
	name, _ := LookupField("name")
	status, _ := LookupField("status")
	pid, _ := LookupField("patient_id")

	tests := []struct {
		name    string
		field   Field
		raw     any
		want    any
		wantErr bool
	}{
		{"numeric string", age, " 42.5 ", 42.5, false},
		{"numeric float", age, 40.0, 40.0, false},
		{"numeric int", age, 7, 7.0, false},
		{"json number", age, json.Number("12"), 12.0, false},
		{"numeric NaN", age, math.NaN(), nil, false},
		{"numeric null token", age, "nan", nil, false},
		{"numeric garbage", age, "forty", nil, true},
		{"numeric inf", age, math.Inf(1), nil, true},
		{"numeric bool", age, true, nil, true},
		{"date canonical", date, "2024-02-03 04:05:06", "2024-02-03 04:05:06", false},
		{"date iso", date, "2024-02-03T04:05:06Z", "2024-02-03 04:05:06", false},
		{"date only", date, "2024-02-03", "2024-02-03 00:00:00", false},
		{"date garbage", date, "yesterday", nil, true},
		{"name collapse", name, "  Ada   Lovelace ", "Ada Lovelace", false},
		{"name none", name, "None", nil, false},
		{"categorical", status, "Yes", "Yes", false},
		{"categorical numeric", status, 1.0, "1", false},
		{"identifier", pid, "12", int64(12), false},
		{"identifier fraction", pid, 1.5, nil, true},
		{"nil", age, nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.field, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseValue error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseValue = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2023/12/31")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got != "2023-12-31 00:00:00" {
		t.Errorf("ParseDate = %s", got)
	}
}

func TestParseDate_SpreadsheetDisplayFormats(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"3/5/24 10:00", "2024-03-05 10:00:00"},
		{"3/5/2024 9:30", "2024-03-05 09:30:00"},
		{"12/31/23", "2023-12-31 00:00:00"},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseDate(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestNumericColumns(t *testing.T) {
	cols := NumericColumns()
	if len(cols) != 9 {
		t.Fatalf("expected 9 numeric vitals, got %d: %v", len(cols), cols)
	}
	if cols[0] != "age" || cols[8] != "homocysteine_level" {
		t.Errorf("unexpected order: %v", cols)
	}
}
