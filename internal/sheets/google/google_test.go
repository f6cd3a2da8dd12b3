package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"spendtracker/internal/core"
	ports "spendtracker/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets emulates the subset of the Sheets values API used by Client.
type fakeSheets struct {
	mu       sync.Mutex
	rows     [][]interface{}
	appended [][]interface{}
	status   map[string]int // keyed by "get" / "append"
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	op := "get"
	if strings.HasSuffix(r.URL.Path, ":append") {
		op = "append"
	}
	if code := f.status[op]; code != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"simulated failure"}}`, code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch op {
	case "append":
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.appended = append(f.appended, vr.Values...)
		f.rows = append(f.rows, vr.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "test-id",
			"updates":       map[string]any{"updatedRange": "'Sheet1'!A2:F2", "updatedRows": len(vr.Values)},
		})
	default:
		values := f.rows
		if strings.Contains(r.URL.Path, "A1:F1") && len(values) > 1 {
			values = values[:1]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Sheet1", "majorDimension": "ROWS", "values": values})
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, "test-id", "Sheet1")
}

func sampleExpense() core.Expense {
	return core.Expense{
		EnteredBy:     "Vikki",
		Category:      "Fruits",
		PaymentMethod: "Cash",
		Amount:        core.Money{Cents: 5000},
		Timestamp:     time.Date(2025, 7, 1, 10, 0, 0, 0, time.Local),
		Location:      core.LocationUnavailable,
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing spreadsheet ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_InvalidOAuthClientIsAuthError(t *testing.T) {
	dir := t.TempDir()
	client := filepath.Join(dir, "client.json")
	token := filepath.Join(dir, "token.json")
	if err := os.WriteFile(client, []byte("invalid-json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(token, []byte(`{"access_token":"x"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := New(context.Background(), Config{SpreadsheetID: "id", OAuthClientFile: client, OAuthTokenFile: token})
	if !errors.Is(err, ports.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if !strings.Contains(err.Error(), "oauth config") {
		t.Errorf("expected oauth config error, got: %v", err)
	}
}

func TestNew_MissingServiceAccountFileIsAuthError(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "id", ServiceAccountFile: filepath.Join(t.TempDir(), "nope.json")})
	if !errors.Is(err, ports.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestAppend_WritesHeaderOnEmptySheet(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	ref, err := c.Append(context.Background(), sampleExpense())
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref == "" {
		t.Fatal("expected a row reference")
	}
	if len(fake.appended) != 2 {
		t.Fatalf("expected header + row, got %d rows", len(fake.appended))
	}
	if fake.appended[0][0] != "Entered By" {
		t.Fatalf("first appended row should be the header: %v", fake.appended[0])
	}
	row := fake.appended[1]
	if row[0] != "Vikki" || row[1] != "Fruits" || row[2] != "Cash" || row[3] != 50.0 || row[4] != "2025-07-01 10:00:00" || row[5] != "Not available" {
		t.Fatalf("unexpected row: %v", row)
	}

	// Second append must not repeat the header.
	if _, err := c.Append(context.Background(), sampleExpense()); err != nil {
		t.Fatalf("second append: %v", err)
	}
	if len(fake.appended) != 3 {
		t.Fatalf("expected 3 appended rows total, got %d", len(fake.appended))
	}
}

func TestAppend_RejectsIncompleteRecord(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	e := sampleExpense()
	e.Category = ""
	_, err := c.Append(context.Background(), e)
	if !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
	if len(fake.appended) != 0 {
		t.Fatal("incomplete record must not reach the sheet")
	}
}

func TestAppend_ErrorClasses(t *testing.T) {
	tests := []struct {
		name   string
		status map[string]int
		want   error
	}{
		{"forbidden", map[string]int{"get": http.StatusForbidden}, ports.ErrAuth},
		{"unauthorized on append", map[string]int{"append": http.StatusUnauthorized}, ports.ErrAuth},
		{"bad request on append", map[string]int{"append": http.StatusBadRequest}, ports.ErrWrite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeSheets{status: tt.status})
			_, err := c.Append(context.Background(), sampleExpense())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReadAll(t *testing.T) {
	fake := &fakeSheets{rows: [][]interface{}{
		{"Entered By", "Category", "Payment Method", "Amount", "Timestamp", "Location"},
		{"Vikki", "Fruits", "Cash", "50", "2025-07-01 10:00:00", "Not available"},
	}}
	c := newTestClient(t, fake)
	tbl, err := c.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(tbl.Headers) != 6 || len(tbl.Rows) != 1 || tbl.Rows[0][1] != "Fruits" {
		t.Fatalf("unexpected table: %+v", tbl)
	}
}

func TestReadAll_ErrorIsReadError(t *testing.T) {
	c := newTestClient(t, &fakeSheets{status: map[string]int{"get": http.StatusBadRequest}})
	_, err := c.ReadAll(context.Background())
	if !errors.Is(err, ports.ErrRead) {
		t.Fatalf("expected ErrRead, got %v", err)
	}
}

func TestNilServiceErrors(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheetName: "Sheet1"}
	if _, err := c.Append(context.Background(), sampleExpense()); !errors.Is(err, ports.ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
	if _, err := c.ReadAll(context.Background()); !errors.Is(err, ports.ErrRead) {
		t.Fatalf("expected ErrRead, got %v", err)
	}
}

func TestA1Quoting(t *testing.T) {
	c := &Client{sheetName: "Bob's Expenses"}
	if got := c.a1("A:F"); got != "'Bob''s Expenses'!A:F" {
		t.Fatalf("a1 = %q", got)
	}
	if got := c.a1(""); got != "'Bob''s Expenses'" {
		t.Fatalf("a1 whole sheet = %q", got)
	}
}
