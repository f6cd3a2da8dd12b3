package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"spendtracker/internal/core"
	"spendtracker/internal/location"
	applog "spendtracker/internal/log"
	ports "spendtracker/internal/sheets"
)

const ledgerTimeout = 20 * time.Second

// stepAction runs one wizard transition for the session. The returned
// viewInput is echoed back when the page is re-rendered.
type stepAction func(ctx context.Context, r *http.Request, entry *sessionEntry) (viewInput, error)

func (s *Server) handleWizard(w http.ResponseWriter, r *http.Request) {
	entry := s.session(w, r)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	in := viewInput{flash: entry.pending}
	entry.pending = nil
	s.writeWizard(w, r, entry, in, NewHTMXResponse())
}

func (s *Server) handleConfirmName(w http.ResponseWriter, r *http.Request) {
	s.runStep(w, r, func(_ context.Context, r *http.Request, entry *sessionEntry) (viewInput, error) {
		return viewInput{}, entry.wizard.ConfirmName(formValue(r, "name"))
	})
}

func (s *Server) handleChooseCategory(w http.ResponseWriter, r *http.Request) {
	s.runStep(w, r, func(_ context.Context, r *http.Request, entry *sessionEntry) (viewInput, error) {
		in := viewInput{
			category:    formValue(r, "category"),
			newCategory: formValue(r, "new_category"),
		}
		return in, entry.wizard.ChooseCategory(in.category, in.newCategory)
	})
}

func (s *Server) handleSelectPayment(w http.ResponseWriter, r *http.Request) {
	s.runStep(w, r, func(_ context.Context, r *http.Request, entry *sessionEntry) (viewInput, error) {
		return viewInput{}, entry.wizard.SelectPayment(formValue(r, "payment"))
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.runStep(w, r, func(ctx context.Context, r *http.Request, entry *sessionEntry) (viewInput, error) {
		in := viewInput{amount: formValue(r, "amount")}
		amount, err := core.ParseMoney(in.amount)
		if err != nil {
			return in, err
		}

		ctx, cancel := context.WithTimeout(ctx, ledgerTimeout)
		defer cancel()
		receipt, err := entry.wizard.Save(ctx, amount)
		if err != nil {
			return in, err
		}

		e := receipt.Expense
		s.metrics.recorded.Add(1)
		s.structured.LogExpenseRecorded(ctx, entry.id, e.EnteredBy, e.Category, e.PaymentMethod,
			e.Amount.Cents, e.Location.String(), receipt.Ref)
		return viewInput{flash: &flash{
			Kind: NotificationSuccess,
			Text: "Saved " + formatRupees(e.Amount.Cents) + " for " + e.Category + ".",
		}}, nil
	})
}

func (s *Server) handleRecordAnother(w http.ResponseWriter, r *http.Request) {
	s.runStep(w, r, func(_ context.Context, _ *http.Request, entry *sessionEntry) (viewInput, error) {
		return viewInput{}, entry.wizard.RecordAnother()
	})
}

// runStep parses the form, runs action under the session lock and answers
// with the re-rendered wizard. Plain form posts are redirected to the page
// with any message carried over to the next render.
func (s *Server) runStep(w http.ResponseWriter, r *http.Request, action stepAction) {
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}

	entry := s.session(w, r)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	ctx := r.Context()
	before, wasSaved := entry.wizard.Step(), entry.wizard.Saved()
	in, err := action(ctx, r, entry)

	resp := NewHTMXResponse()
	switch {
	case err != nil:
		msg, kind := userMessage(err)
		in.flash = &flash{Kind: kind, Text: msg}
		notify(resp, kind, msg)
		s.logStepFailure(ctx, entry, err)
	case entry.wizard.Saved() && !wasSaved:
		resp.TriggerExpenseRecorded(entry.wizard.State().Receipt.Ref)
		if in.flash != nil {
			resp.TriggerSuccessNotification(in.flash.Text)
		}
	}
	if after := entry.wizard.Step(); after != before {
		resp.TriggerStepChanged(int(after))
	}

	if !isHTMX(r) {
		entry.pending = in.flash
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.writeWizard(w, r, entry, in, resp)
}

func (s *Server) writeWizard(w http.ResponseWriter, r *http.Request, entry *sessionEntry, in viewInput, resp *HTMXResponseBuilder) {
	body, err := s.render("wizard", s.wizardView(entry, in))
	if err != nil {
		s.structured.LogError(r.Context(), "Wizard template execution failed", err, applog.OpRender,
			applog.LogFields{applog.FieldSessionID: entry.id})
		InternalServerError("The page could not be displayed. Please reload.").Write(w)
		return
	}
	resp.BodyHTML(body).Write(w)
}

func (s *Server) logStepFailure(ctx context.Context, entry *sessionEntry, err error) {
	fields := applog.LogFields{
		applog.FieldSessionID: entry.id,
		applog.FieldStep:      entry.wizard.Step().String(),
	}
	switch {
	case errors.Is(err, ports.ErrAuth), errors.Is(err, ports.ErrWrite), errors.Is(err, ports.ErrRead):
		s.structured.LogError(ctx, "Ledger write failed", err, applog.OpAppend, fields)
	case errors.Is(err, core.ErrValidation):
		applog.FromContext(ctx).DebugContext(ctx, "Wizard input rejected", fields.WithError(err).ToSlice()...)
	default:
		applog.FromContext(ctx).WarnContext(ctx, "Wizard action failed", fields.WithError(err).ToSlice()...)
	}
}

func notify(resp *HTMXResponseBuilder, kind NotificationType, msg string) *HTMXResponseBuilder {
	switch kind {
	case NotificationError:
		return resp.TriggerErrorNotification(msg)
	case NotificationSuccess:
		return resp.TriggerSuccessNotification(msg)
	case NotificationWarning:
		return resp.TriggerWarningNotification(msg)
	}
	return resp.TriggerNotification(kind, msg, 4000)
}

// handleLocation records the browser's position for the session. Blank
// coordinates mean the user declined, which fixes the location to the
// unavailable sentinel. Only the first report per session is used.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request format"})
		return
	}

	entry := s.session(w, r)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	ctx := r.Context()
	consulted := entry.wizard.ResolveLocation(ctx, location.FromStrings(p.Get("lat"), p.Get("lon")))
	loc := entry.wizard.State().Location.String()
	if consulted {
		applog.FromContext(ctx).DebugContext(ctx, "Location resolved",
			applog.FieldOperation, applog.OpResolve,
			applog.FieldSessionID, entry.id,
			applog.FieldLocation, loc)
	}
	writeJSON(w, http.StatusOK, map[string]any{"location": loc, "consulted": consulted})
}
