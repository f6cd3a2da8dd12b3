package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spendtracker/internal/categories"
	"spendtracker/internal/core"
	"spendtracker/internal/export"
	applog "spendtracker/internal/log"
	ports "spendtracker/internal/sheets"
	"spendtracker/internal/sheets/memory"
)

var fixedNow = time.Date(2025, 6, 7, 21, 5, 9, 0, time.UTC)

type failingLedger struct {
	*memory.Store
	err error
}

func (f failingLedger) Append(context.Context, core.Expense) (string, error) { return "", f.err }

type harness struct {
	t      *testing.T
	srv    *Server
	cats   *categories.Store
	cookie *http.Cookie
}

func newHarness(t *testing.T, ledger ports.Ledger, mutate ...func(*Options)) *harness {
	t.Helper()
	cats := categories.New(filepath.Join(t.TempDir(), "categories.json"), categories.DefaultLabels)
	opts := Options{
		Addr:       ":0",
		Ledger:     ledger,
		Categories: cats,
		Logger:     applog.New(applog.Config{Output: io.Discard}),
		Clock:      func() time.Time { return fixedNow },
	}
	for _, m := range mutate {
		m(&opts)
	}
	srv := NewServer(opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &harness{t: t, srv: srv, cats: cats}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	h.t.Helper()
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	rr := httptest.NewRecorder()
	h.srv.Handler.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookieName {
			h.cookie = c
		}
	}
	return rr
}

func (h *harness) get(path string, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return h.do(req)
}

func (h *harness) post(path string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return h.do(req)
}

func (h *harness) step(path, key, value string) *httptest.ResponseRecorder {
	h.t.Helper()
	rr := h.post(path, url.Values{key: {value}}, true)
	if rr.Code != http.StatusOK {
		h.t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
	}
	return rr
}

func (h *harness) toAmountStep() {
	h.t.Helper()
	h.step("/wizard/name", "name", "Vikki")
	h.step("/wizard/category", "category", "Juice")
	h.step("/wizard/payment", "payment", "Cash")
}

func mustContain(t *testing.T, body string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestIndexStartsSession(t *testing.T) {
	h := newHarness(t, memory.New())

	rr := h.get("/", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	mustContain(t, rr.Body.String(), "Expense Tracker", "Who are you?", "Vikki", "Sneha", "/export.csv")

	if h.cookie == nil {
		t.Fatal("expected session cookie")
	}
	if !h.cookie.HttpOnly || h.cookie.SameSite != http.SameSiteLaxMode || h.cookie.Secure {
		t.Errorf("cookie flags: %+v", h.cookie)
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control=%q", got)
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing security headers")
	}

	first := h.cookie.Value
	h.get("/", false)
	if h.cookie.Value != first {
		t.Errorf("session should be reused, got new cookie %q", h.cookie.Value)
	}
}

func TestSecureCookies(t *testing.T) {
	h := newHarness(t, memory.New(), func(o *Options) { o.SecureCookies = true })
	h.get("/", false)
	if h.cookie == nil || !h.cookie.Secure {
		t.Fatalf("session cookie should be Secure: %+v", h.cookie)
	}
}

func TestWizardRecordsExpense(t *testing.T) {
	ledger := memory.New()
	h := newHarness(t, ledger)

	rr := h.step("/wizard/name", "name", "Vikki")
	mustContain(t, rr.Body.String(), "Hi Vikki", "Juice")
	mustContain(t, rr.Header().Get("HX-Trigger"), "wizard:step")

	rr = h.step("/wizard/category", "category", "Juice")
	mustContain(t, rr.Body.String(), "How did you pay?", "Google Pay")

	rr = h.step("/wizard/payment", "payment", "Cash")
	mustContain(t, rr.Body.String(), "How much?", `min="1.00"`, "Review")

	rr = h.step("/wizard/save", "amount", "250")
	mustContain(t, rr.Body.String(), "Expense saved", "₹250.00", "2025-06-07 21:05:09", "Record Another Expense")
	mustContain(t, rr.Header().Get("HX-Trigger"), "expense:recorded", "mem:1", "show-notification")

	exps := ledger.Expenses()
	if len(exps) != 1 {
		t.Fatalf("ledger has %d expenses, want 1", len(exps))
	}
	if e := exps[0]; e.EnteredBy != "Vikki" || e.Category != "Juice" || e.PaymentMethod != "Cash" || e.Amount.Cents != 25000 {
		t.Errorf("unexpected expense %+v", e)
	}
	if got := exps[0].Location.String(); got != core.LocationUnavailable {
		t.Errorf("location=%q", got)
	}

	// A second save of the same draft is refused.
	rr = h.step("/wizard/save", "amount", "250")
	mustContain(t, rr.Body.String(), "already saved")
	if len(ledger.Expenses()) != 1 {
		t.Fatal("duplicate save reached the ledger")
	}

	rr = h.step("/wizard/reset", "", "")
	mustContain(t, rr.Body.String(), "Who are you?")
}

func TestWizardNewCategory(t *testing.T) {
	h := newHarness(t, memory.New())
	h.step("/wizard/name", "name", "Sneha")

	rr := h.post("/wizard/category", url.Values{"category": {"Other"}}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	mustContain(t, rr.Body.String(), "Enter a name for the new category.", `id="new_category"`)
	if strings.Contains(rr.Body.String(), `class="new-category" hidden`) {
		t.Error("new category box should be visible")
	}

	rr = h.post("/wizard/category", url.Values{"category": {"Other"}, "new_category": {"  Stationery "}}, true)
	mustContain(t, rr.Body.String(), "How did you pay?")
	if !h.cats.Contains("Stationery") {
		t.Error("new category was not stored")
	}
	list := h.cats.List()
	if list[len(list)-1] != categories.Sentinel {
		t.Errorf("sentinel should stay last: %v", list)
	}
}

func TestSaveRejectsSmallOrInvalidAmounts(t *testing.T) {
	ledger := memory.New()
	h := newHarness(t, ledger)
	h.toAmountStep()

	tests := []struct {
		amount string
		want   string
	}{
		{"0.50", "Amount must be at least ₹1.00."},
		{"0.995", "Amount must be at least ₹1.00."},
		{"0,999", "Amount must be at least ₹1.00."},
		{"1.٣", "Please enter a valid amount"},
		{"abc", "Please enter a valid amount"},
		{"", "Please enter a valid amount"},
	}
	for _, tt := range tests {
		rr := h.step("/wizard/save", "amount", tt.amount)
		mustContain(t, rr.Body.String(), tt.want, "How much?", `step="1"`)
		mustContain(t, rr.Header().Get("HX-Trigger"), "warning")
	}
	if n := len(ledger.Expenses()); n != 0 {
		t.Fatalf("ledger has %d expenses, want 0", n)
	}

	rr := h.step("/wizard/save", "amount", "1")
	mustContain(t, rr.Body.String(), "₹1.00")
}

func TestSaveLedgerFailureKeepsDraft(t *testing.T) {
	h := newHarness(t, failingLedger{Store: memory.New(), err: ports.WriteError(errors.New("quota exceeded"))})
	h.toAmountStep()

	rr := h.step("/wizard/save", "amount", "99.50")
	mustContain(t, rr.Body.String(), "Nothing was recorded", "How much?", `value="99.50"`)
	mustContain(t, rr.Header().Get("HX-Trigger"), `"type":"error"`)
	if strings.Contains(rr.Header().Get("HX-Trigger"), "expense:recorded") {
		t.Error("failed save must not announce a record")
	}
}

func TestStepsOutOfOrder(t *testing.T) {
	h := newHarness(t, memory.New())
	rr := h.step("/wizard/payment", "payment", "Cash")
	mustContain(t, rr.Body.String(), "Who are you?")

	rr = h.step("/wizard/name", "name", "Mallory")
	mustContain(t, rr.Body.String(), "Please choose one of the listed names.")

	rr = h.step("/wizard/reset", "", "")
	mustContain(t, rr.Body.String(), "Save the current expense first.")
}

func TestPlainFormPostRedirects(t *testing.T) {
	h := newHarness(t, memory.New())

	rr := h.post("/wizard/name", url.Values{}, false)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	rr = h.get("/", false)
	mustContain(t, rr.Body.String(), "Please select a name first!")

	// The message is shown once.
	rr = h.get("/", false)
	if strings.Contains(rr.Body.String(), "Please select a name first!") {
		t.Error("flash repeated on second render")
	}

	h.post("/wizard/name", url.Values{"name": {"Vikki"}}, false)
	rr = h.get("/", false)
	mustContain(t, rr.Body.String(), "Hi Vikki")
}

func TestSessionsAreIndependent(t *testing.T) {
	ledger := memory.New()
	a := newHarness(t, ledger)
	a.step("/wizard/name", "name", "Vikki")

	b := &harness{t: t, srv: a.srv}
	rr := b.get("/wizard", true)
	mustContain(t, rr.Body.String(), "Who are you?")
	if b.cookie == nil || b.cookie.Value == a.cookie.Value {
		t.Fatal("second browser should get its own session")
	}
}

func TestExport(t *testing.T) {
	ledger := memory.New()
	h := newHarness(t, ledger)

	rr := h.get("/export.csv", false)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/?notice=no-data" {
		t.Fatalf("empty export: status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	rr = h.get("/?notice=no-data", false)
	mustContain(t, rr.Body.String(), "No data available to download.")

	rr = h.get("/export.xlsx", true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("htmx empty export status=%d", rr.Code)
	}
	mustContain(t, rr.Header().Get("HX-Trigger"), "No data available to download.")

	h.toAmountStep()
	h.step("/wizard/save", "amount", "12.5")

	rr = h.get("/export.csv", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("csv status=%d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != export.ContentTypeCSV {
		t.Errorf("Content-Type=%q", got)
	}
	mustContain(t, rr.Header().Get("Content-Disposition"), "attachment", "expense_data_20250607_210509.csv")
	mustContain(t, rr.Body.String(),
		"Entered By,Category,Payment Method,Amount,Timestamp,Location",
		"Vikki,Juice,Cash,12.50,2025-06-07 21:05:09,Not available")

	rr = h.get("/export.xlsx", false)
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != export.ContentTypeXLSX {
		t.Fatalf("xlsx status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rr.Body.String(), "PK") {
		t.Error("xlsx body is not a zip archive")
	}
}

func TestExportReadFailure(t *testing.T) {
	h := newHarness(t, brokenReader{memory.New()})
	rr := h.get("/export.csv", false)
	if rr.Header().Get("Location") != "/?notice=export-failed" {
		t.Fatalf("location=%q", rr.Header().Get("Location"))
	}
}

type brokenReader struct{ *memory.Store }

func (brokenReader) ReadAll(context.Context) (core.Table, error) {
	return core.Table{}, ports.ReadError(errors.New("timeout"))
}

func TestLocationIsResolvedOnce(t *testing.T) {
	ledger := memory.New()
	h := newHarness(t, ledger)

	postJSON := func(body string) map[string]any {
		req := httptest.NewRequest(http.MethodPost, "/location", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := h.do(req)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
		var out map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatal(err)
		}
		return out
	}

	out := postJSON(`{"lat":"12.97159","lon":77.59456}`)
	if out["location"] != "12.9716, 77.5946" || out["consulted"] != true {
		t.Fatalf("first report: %v", out)
	}
	out = postJSON(`{"lat":"","lon":""}`)
	if out["location"] != "12.9716, 77.5946" || out["consulted"] != false {
		t.Fatalf("second report: %v", out)
	}

	h.toAmountStep()
	h.step("/wizard/save", "amount", "40")
	if got := ledger.Expenses()[0].Location.String(); got != "12.9716, 77.5946" {
		t.Errorf("saved location=%q", got)
	}

	// Resolution survives "record another".
	rr := h.step("/wizard/reset", "", "")
	mustContain(t, rr.Body.String(), `data-location-resolved="true"`)
}

func TestLocationDenied(t *testing.T) {
	h := newHarness(t, memory.New())
	req := httptest.NewRequest(http.MethodPost, "/location", strings.NewReader("lat=&lon="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := h.do(req)
	mustContain(t, rr.Body.String(), `"location":"Not available"`, `"consulted":true`)
}

func TestHealthReadyMetrics(t *testing.T) {
	h := newHarness(t, memory.New(), func(o *Options) {
		o.Ready = func(context.Context) error { return errors.New("sheet unreachable") }
	})

	rr := h.get("/healthz", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	mustContain(t, rr.Body.String(), `"status":"ok"`)

	rr = h.get("/readyz", false)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
	mustContain(t, rr.Body.String(), "sheet unreachable", `"templates":"ok"`)

	h.toAmountStep()
	h.step("/wizard/save", "amount", "5")

	rr = h.get("/metrics", false)
	mustContain(t, rr.Body.String(),
		"# TYPE http_requests_total counter",
		"expenses_recorded_total 1",
		"wizard_sessions 1")
}

func TestReadyWithoutProbe(t *testing.T) {
	h := newHarness(t, memory.New())
	if rr := h.get("/readyz", false); rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRateLimitAppliesToPosts(t *testing.T) {
	h := newHarness(t, memory.New(), func(o *Options) { o.RateLimitPerMinute = 1 })

	h.step("/wizard/name", "name", "Vikki")
	rr := h.post("/wizard/category", url.Values{"category": {"Juice"}}, true)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rr := h.get("/wizard", true); rr.Code != http.StatusOK {
		t.Errorf("GET should not be limited, status=%d", rr.Code)
	}
}

func TestSuspiciousRequestsAreBlocked(t *testing.T) {
	h := newHarness(t, memory.New())
	if rr := h.get("/.env", false); rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	h := newHarness(t, memory.New())
	rr := h.get("/static/app.js", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	mustContain(t, rr.Header().Get("Cache-Control"), "max-age=3600")
	mustContain(t, rr.Body.String(), "show-notification")
}
