package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var nullTokens = map[string]bool{
	"nan": true, "none": true, "null": true, "nil": true,
	"na": true, "n/a": true, "<na>": true,
}

// IsNullToken reports whether s is empty or a stringified missing value such
// as "NaN" or "None".
func IsNullToken(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "" || nullTokens[s]
}

// ParseValue converts a spreadsheet cell or decoded JSON value into the Go
// value stored for f: float64 for numeric fields, a canonical date string
// for date_recorded, []byte for images, string otherwise. A nil result
// means the value is missing.
func ParseValue(f Field, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok && IsNullToken(s) {
		return nil, nil
	}

	switch f.Kind {
	case KindNumeric:
		return parseNumber(raw)
	case KindDate:
		switch v := raw.(type) {
		case string:
			return ParseDate(v)
		case time.Time:
			return v.UTC().Format(DateLayout), nil
		}
		return nil, fmt.Errorf("%s: expected a date, got %T", f.Column, raw)
	case KindBinary:
		if b, ok := raw.([]byte); ok {
			if len(b) == 0 {
				return nil, nil
			}
			return b, nil
		}
		return nil, fmt.Errorf("%s: expected binary data, got %T", f.Column, raw)
	case KindIdentifier:
		n, err := parseNumber(raw)
		if err != nil || n == nil {
			return n, err
		}
		id := n.(float64)
		if id != math.Trunc(id) || id <= 0 {
			return nil, fmt.Errorf("%s: %v is not a valid id", f.Column, raw)
		}
		return int64(id), nil
	default:
		s, err := parseText(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Column, err)
		}
		if f.Kind == KindName {
			s = strings.Join(strings.Fields(s), " ")
		}
		return s, nil
	}
}

func parseNumber(raw any) (any, error) {
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case int32:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", n.String())
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", n)
		}
		v = f
	default:
		return nil, fmt.Errorf("expected a number, got %T", raw)
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	if math.IsInf(v, 0) {
		return nil, fmt.Errorf("number out of range")
	}
	return v, nil
}

func parseText(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int, int64, int32, bool, json.Number:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("expected text, got %T", raw)
	}
}
