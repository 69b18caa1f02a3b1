package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newContext("/"))

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(newContext("/?limit=50&offset=10"))

	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_PageNumber(t *testing.T) {
	p := FromContext(newContext("/?limit=20&page=3"))

	if p.Offset != 40 {
		t.Errorf("expected offset 40 for page 3, got %d", p.Offset)
	}
	if p.PageNumber() != 3 {
		t.Errorf("expected page 3, got %d", p.PageNumber())
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := FromContext(newContext("/?limit=100000"))

	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	p := FromContext(newContext("/?offset=-5"))

	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContextWithDefault(t *testing.T) {
	p := FromContextWithDefault(newContext("/"), 25)
	if p.Limit != 25 {
		t.Errorf("expected limit 25, got %d", p.Limit)
	}
	p = FromContextWithDefault(newContext("/"), 0)
	if p.Limit != DefaultLimit {
		t.Errorf("expected fallback limit %d, got %d", DefaultLimit, p.Limit)
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		count, limit, want int
	}{
		{0, 50, 1},
		{1, 50, 1},
		{50, 50, 1},
		{51, 50, 2},
		{101, 50, 3},
		{10, 0, 1},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.count, tt.limit); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.count, tt.limit, got, tt.want)
		}
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]int{1, 2}, 5, 2, 2)
	if r.Page != 2 {
		t.Errorf("expected page 2, got %d", r.Page)
	}
	if r.TotalPages != 3 {
		t.Errorf("expected 3 total pages, got %d", r.TotalPages)
	}
	if !r.HasMore {
		t.Error("expected HasMore")
	}
	if r.NextOffset == nil || *r.NextOffset != 4 {
		t.Errorf("expected next offset 4, got %v", r.NextOffset)
	}
	if r.PrevOffset == nil || *r.PrevOffset != 0 {
		t.Errorf("expected prev offset 0, got %v", r.PrevOffset)
	}

	last := NewResponse(nil, 5, 2, 4)
	if last.HasMore || last.NextOffset != nil {
		t.Error("expected no more results on last page")
	}

	first := NewResponse(nil, 5, 2, 0)
	if first.PrevOffset != nil {
		t.Errorf("expected no prev offset on first page, got %d", *first.PrevOffset)
	}
}

func TestParams_Navigation(t *testing.T) {
	p := Params{Limit: 10, Offset: 5}
	if p.NextOffset() != 15 {
		t.Errorf("expected next offset 15, got %d", p.NextOffset())
	}
	if p.PreviousOffset() != 0 {
		t.Errorf("expected previous offset clamped to 0, got %d", p.PreviousOffset())
	}
	if !p.HasPrevious() {
		t.Error("expected HasPrevious")
	}
	if p.HasNext(15) {
		t.Error("expected no next page at total 15")
	}
}
