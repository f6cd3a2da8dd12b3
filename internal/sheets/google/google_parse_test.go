package google

import (
	"testing"
)

// Matrix shaped like a values.get response for a ledger worksheet.
func TestParseValues_HeaderAndRows(t *testing.T) {
	values := [][]interface{}{
		{"Entered By", "Category", "Payment Method", "Amount", "Timestamp", "Location", ""},
		{"Vikki", "Fruits", "Cash", 50, "2025-07-01 10:00:00", "Not available"},
		{"", "", "", "", "", ""},
		{"Sneha", "Juice", "BHIM", 12.5},
		{"Vikki", "Egg", "Google Pay", 30, "2025-07-02 09:30:00", "12.9716, 77.5946", "extra"},
	}
	tbl := parseValues(values)
	if len(tbl.Headers) != 6 {
		t.Fatalf("expected 6 headers, got %v", tbl.Headers)
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("expected 3 rows (blank skipped), got %d", len(tbl.Rows))
	}
	if tbl.Rows[0][3] != "50" {
		t.Fatalf("amount cell: got %q", tbl.Rows[0][3])
	}
	if got := tbl.Rows[1]; len(got) != 6 || got[4] != "" || got[5] != "" {
		t.Fatalf("short row should be padded: %v", got)
	}
	if got := tbl.Rows[2]; len(got) != 6 || got[5] != "12.9716, 77.5946" {
		t.Fatalf("long row should be truncated: %v", got)
	}
}

func TestParseValues_Empty(t *testing.T) {
	if tbl := parseValues(nil); !tbl.Empty() || len(tbl.Headers) != 0 {
		t.Fatalf("expected empty table, got %+v", tbl)
	}
	// Header only: no records.
	tbl := parseValues([][]interface{}{{"Entered By", "Category"}})
	if !tbl.Empty() {
		t.Fatalf("header-only sheet should have no rows: %+v", tbl)
	}
	if len(tbl.Headers) != 2 {
		t.Fatalf("headers: %v", tbl.Headers)
	}
}
