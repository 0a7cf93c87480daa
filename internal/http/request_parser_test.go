package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"", time.Time{}, true},
		{"2026-03-10", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), true},
		{"2026-03-10T15:04:05Z", time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC), true},
		{"  2026-03-10  ", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), true},
		{"10/03/2026", time.Time{}, false},
		{"not-a-date", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := parseDate(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want) {
				t.Errorf("parseDate(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
			}
		} else if err == nil {
			t.Errorf("parseDate(%q) expected error", tc.in)
		}
	}
}

func TestParseWindow(t *testing.T) {
	t.Run("both bounds", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/summary/debts?start=2026-03-01&end=2026-04-01", nil)
		w, err := parseWindow(r)
		if err != nil {
			t.Fatalf("parseWindow: %v", err)
		}
		if w.Start.IsZero() || w.End.IsZero() {
			t.Fatalf("window = %+v", w)
		}
	})

	t.Run("unbounded", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/summary/debts", nil)
		w, err := parseWindow(r)
		if err != nil {
			t.Fatalf("parseWindow: %v", err)
		}
		if !w.Start.IsZero() || !w.End.IsZero() {
			t.Fatalf("window = %+v, want zero bounds", w)
		}
	})

	t.Run("inverted bounds rejected", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/summary/debts?start=2026-04-01&end=2026-03-01", nil)
		if _, err := parseWindow(r); err == nil {
			t.Fatal("expected error for start after end")
		}
	})
}

func TestParseBoardIDs(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/summary/debts?board_id=flat&board_id=trip&board_id=+", nil)
	ids := parseBoardIDs(r)
	if len(ids) != 2 || ids[0] != "flat" || ids[1] != "trip" {
		t.Fatalf("parseBoardIDs = %v, want [flat trip]", ids)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/expenses",
		strings.NewReader(`{"board_id":"b","bogus":true}`))

	var req createExpenseRequest
	if err := decodeJSON(r, &req); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
