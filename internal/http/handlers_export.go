package http

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"spendtracker/internal/export"
	applog "spendtracker/internal/log"
	ports "spendtracker/internal/sheets"
)

type exporter func(ctx context.Context, r ports.LedgerReader, now time.Time) (export.Result, error)

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, "csv", export.CSV)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, "xlsx", export.XLSX)
}

// serveExport reads the whole ledger and sends it as an attachment. Failures
// go back to the page with a notice, or as a notification for htmx callers.
func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, format string, build exporter) {
	ctx, cancel := context.WithTimeout(r.Context(), ledgerTimeout)
	defer cancel()

	res, err := build(ctx, s.ledger, s.now())
	if err != nil {
		notice := "export-failed"
		status := http.StatusBadGateway
		if errors.Is(err, export.ErrNoData) {
			notice = "no-data"
			status = http.StatusNotFound
			applog.FromContext(ctx).InfoContext(ctx, "Export requested with empty ledger", applog.FieldFormat, format)
		} else {
			s.structured.LogError(ctx, "Export failed", err, applog.OpExport, applog.LogFields{applog.FieldFormat: format})
		}

		if isHTMX(r) {
			n := notices[notice]
			notify(NewHTMXResponse().Status(status), n.Kind, n.Text).Write(w)
			return
		}
		http.Redirect(w, r, "/?notice="+notice, http.StatusSeeOther)
		return
	}

	s.metrics.exports.Add(1)
	s.structured.LogExport(ctx, format, res.Rows)

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}
