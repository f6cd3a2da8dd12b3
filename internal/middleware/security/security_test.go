package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Permissions-Policy"), "geolocation=(self)")
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "https://unpkg.com")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"), "plain HTTP gets no HSTS")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}

func TestHeadersMiddlewareSkipsEmptyValues(t *testing.T) {
	h := NewHeadersMiddleware(HeadersConfig{XFrameOptions: "SAMEORIGIN"}).Middleware(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	_, present := rec.Header()["Content-Security-Policy"]
	assert.False(t, present)
}

func TestCacheHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	StaticAssetMiddleware(3600)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	NoStore(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export.csv", nil))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"wizard page", http.MethodGet, "/wizard", "Mozilla/5.0", false},
		{"curl export", http.MethodGet, "/export.csv", "curl/8.0", false},
		{"path traversal", http.MethodGet, "/static/../../etc/passwd", "", true},
		{"dotenv probe", http.MethodGet, "/.env", "", true},
		{"script in query", http.MethodGet, "/?q=<script>", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			req := httptest.NewRequest(tt.method, "/", nil)
			req.URL.Path, req.URL.RawQuery, _ = strings.Cut(tt.target, "?")
			req.Header.Set("User-Agent", tt.agent)
			assert.Equal(t, tt.want, d.DetectSuspiciousRequest(req))
		})
	}
}

func TestDetectorMiddlewareBlocks(t *testing.T) {
	d := NewDetector()
	h := d.Middleware(true)(okHandler)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/wp-admin", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wizard", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	m := d.GetMetrics()
	assert.Equal(t, int64(1), m.SuspiciousRequests)
	assert.Equal(t, int64(1), m.BlockedRequests)
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public client", "203.0.113.9:5000", "", "", "203.0.113.9"},
		{"public peer cannot spoof", "203.0.113.9:5000", "1.1.1.1", "", "203.0.113.9"},
		{"trusted proxy forwards", "10.0.0.2:80", "198.51.100.7, 10.0.0.2", "", "198.51.100.7"},
		{"real ip header", "127.0.0.1:80", "", "198.51.100.8", "198.51.100.8"},
		{"garbage forwarded value", "192.168.1.1:80", "nonsense", "", "192.168.1.1"},
		{"remote without port", "192.0.2.1", "", "", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, d.ExtractClientIP(req))
		})
	}

	assert.Error(t, d.AddTrustedProxy("not-a-cidr"))
	assert.NoError(t, d.AddTrustedProxy("203.0.113.0/24"))
}
