package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	applog "spendtracker/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.startTime).Round(time.Second).String(),
	})
}

// handleReady checks templates and the ledger backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ledger == nil:
		checks["ledger"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	case s.ready == nil:
		checks["ledger"] = "ok"
	default:
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Ledger readiness check failed", "error", err)
			checks["ledger"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["ledger"] = "ok"
		}
	}

	checks["sessions"] = map[string]any{
		"active": s.sessions.Size(),
		"status": "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	securityMetrics := s.detector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.tracer.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_microseconds_avg", "gauge", "Average response time", traceMetrics.AverageResponseMicros)
	metric("expenses_recorded_total", "counter", "Expenses saved to the ledger", s.metrics.recorded.Load())
	metric("exports_total", "counter", "Ledger downloads served", s.metrics.exports.Load())
	metric("wizard_sessions", "gauge", "Live wizard sessions", s.sessions.Size())
	metric("rate_limit_rejections_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.Rejected)
	metric("rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("blocked_requests_total", "counter", "Suspicious requests rejected", securityMetrics.BlockedRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.metrics.startTime).Seconds()))
}

var notices = map[string]flash{
	"no-data":       {Kind: NotificationWarning, Text: "No data available to download."},
	"export-failed": {Kind: NotificationError, Text: "Could not prepare the download. Please try again."},
}

// handleIndex renders the full page for the caller's session.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	entry := s.session(w, r)
	entry.mu.Lock()
	view := pageView{Wizard: s.wizardView(entry, viewInput{flash: entry.pending})}
	entry.pending = nil
	entry.mu.Unlock()

	if n, ok := notices[r.URL.Query().Get("notice")]; ok {
		view.Notice = &n
	}

	body, err := s.render("index.html", view)
	if err != nil {
		s.structured.LogError(r.Context(), "Index template execution failed", err, applog.OpRender,
			applog.LogFields{"template": "index.html"})
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
