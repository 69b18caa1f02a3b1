package ingest

import (
	"sort"
)

// median returns the median of vals; for an even count it is the mean of
// the two middle values. ok is false when vals is empty.
func median(vals []float64) (m float64, ok bool) {
	if len(vals) == 0 {
		return 0, false
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid], true
	}
	return (s[mid-1] + s[mid]) / 2, true
}

// mode returns the most frequent value; ties go to the lexicographically
// smallest. ok is false when vals is empty.
func mode(vals []string) (m string, ok bool) {
	if len(vals) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	best := -1
	for v, n := range counts {
		if n > best || (n == best && v < m) {
			m, best = v, n
		}
	}
	return m, true
}
