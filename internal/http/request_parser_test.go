package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"spendtracker/internal/core"
	ports "spendtracker/internal/sheets"
	"spendtracker/internal/wizard"
)

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "json with numbers",
			body: `{"lat": 12.5, "lon": "77.25", "flag": true}`,
			want: map[string]string{"lat": "12.5", "lon": "77.25", "flag": "true", "missing": ""},
		},
		{
			name: "form encoded",
			body: "lat=1.5&lon=%20-2.25%20",
			want: map[string]string{"lat": "1.5", "lon": "-2.25"},
		},
		{
			name: "empty body",
			body: "",
			want: map[string]string{"lat": ""},
		},
		{
			name:    "malformed json",
			body:    `{"lat": `,
			wantErr: true,
		},
		{
			name:    "oversized body",
			body:    "lat=" + strings.Repeat("1", maxBodyBytes),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/location", strings.NewReader(tt.body))
			p := NewRequestBodyParser(req)
			err := p.Parse()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			for k, want := range tt.want {
				if got := p.Get(k); got != want {
					t.Errorf("Get(%q) = %q, want %q", k, got, want)
				}
			}
			if err := p.Parse(); err != nil {
				t.Errorf("second Parse() error = %v", err)
			}
		})
	}
}

func TestParseFormOrFail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/wizard/name", strings.NewReader("name=%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	resp := ParseFormOrFail(rr, req)
	if resp == nil {
		t.Fatal("expected error response for malformed form")
	}
	resp.Write(rr)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status=%d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/wizard/name", strings.NewReader("name=+Vikki%01+"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if resp := ParseFormOrFail(httptest.NewRecorder(), req); resp != nil {
		t.Fatal("unexpected error response")
	}
	if got := formValue(req, "name"); got != "Vikki" {
		t.Errorf("formValue = %q", got)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  Juice  ":          "Juice",
		"Tea\x00/coffee":     "Tea/coffee",
		"line\nbreak":        "line\nbreak",
		"\x7fbell\x07":       "bell",
		"Dairy\tProducts":    "Dairy\tProducts",
		"":                   "",
		" ₹ rupee sign ":     "₹ rupee sign",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatRupees(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{100, "₹1.00"},
		{1250, "₹12.50"},
		{5, "₹0.05"},
		{-25000, "-₹250.00"},
	}
	for _, tt := range tests {
		if got := formatRupees(tt.cents); got != tt.want {
			t.Errorf("formatRupees(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err      error
		contains string
		kind     NotificationType
	}{
		{core.ErrAmountTooSmall, "at least ₹1.00", NotificationWarning},
		{core.ErrInvalidAmount, "valid amount", NotificationWarning},
		{wizard.ErrNoIdentity, "select a name", NotificationWarning},
		{wizard.ErrNewCategoryRequired, "new category", NotificationInfo},
		{fmt.Errorf("%w: %w", wizard.ErrCategoryNotSaved, errors.New("read-only fs")), "Could not save the new category", NotificationError},
		{wizard.ErrAlreadySaved, "already saved", NotificationInfo},
		{ports.AuthError(errors.New("401")), "sign in", NotificationError},
		{ports.WriteError(errors.New("quota")), "Nothing was recorded", NotificationError},
		{ports.ReadError(errors.New("timeout")), "Could not read", NotificationError},
		{errors.New("boom"), "Something went wrong", NotificationError},
	}
	for _, tt := range tests {
		msg, kind := userMessage(tt.err)
		if !strings.Contains(msg, tt.contains) || kind != tt.kind {
			t.Errorf("userMessage(%v) = %q, %s; want %q, %s", tt.err, msg, kind, tt.contains, tt.kind)
		}
	}
}

func TestIsHTMX(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTMX(req) {
		t.Error("plain request reported as htmx")
	}
	req.Header.Set("HX-Request", "true")
	if !isHTMX(req) {
		t.Error("htmx request not detected")
	}
}
