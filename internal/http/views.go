package http

import (
	"bytes"
	"fmt"

	"spendtracker/internal/core"
	"spendtracker/internal/wizard"
)

const stepCount = 4

type flash struct {
	Kind NotificationType
	Text string
}

type receiptView struct {
	Ref       string
	EnteredBy string
	Category  string
	Payment   string
	Amount    string
	Timestamp string
	Location  string
}

// wizardView is what templates/wizard.html renders.
type wizardView struct {
	Step      int
	StepCount int
	Saved     bool

	Identities     []string
	Categories     []string
	Sentinel       string
	PaymentMethods []string

	Name     string
	Category string
	Payment  string

	// Echoed form input after a failed submission.
	AmountInput     string
	ShowNewCategory bool
	NewCategory     string

	Location         string
	LocationResolved bool
	MinAmount        string

	Receipt *receiptView
	Flash   *flash
}

type pageView struct {
	Wizard wizardView
	Notice *flash
}

// viewInput carries what the last request submitted, for re-rendering.
type viewInput struct {
	amount      string
	newCategory string
	category    string
	flash       *flash
}

func (s *Server) wizardView(entry *sessionEntry, in viewInput) wizardView {
	st := entry.wizard.State()
	v := wizardView{
		Step:             int(st.Step),
		StepCount:        stepCount,
		Saved:            st.Saved,
		Identities:       entry.wizard.Identities(),
		Categories:       s.categories.List(),
		Sentinel:         s.categories.Sentinel(),
		PaymentMethods:   entry.wizard.PaymentMethods(),
		Name:             st.Draft.Name,
		Category:         st.Draft.Category,
		Payment:          st.Draft.Payment,
		AmountInput:      in.amount,
		NewCategory:      in.newCategory,
		ShowNewCategory:  in.category == s.categories.Sentinel(),
		Location:         st.Location.String(),
		LocationResolved: st.LocationResolved,
		MinAmount:        core.MinAmount.Decimal(),
		Flash:            in.flash,
	}
	if st.Saved {
		e := st.Receipt.Expense
		v.Receipt = &receiptView{
			Ref:       st.Receipt.Ref,
			EnteredBy: e.EnteredBy,
			Category:  e.Category,
			Payment:   e.PaymentMethod,
			Amount:    formatRupees(e.Amount.Cents),
			Timestamp: e.FormattedTimestamp(),
			Location:  e.Location.String(),
		}
	}
	if v.AmountInput == "" && st.Step == wizard.AwaitingAmount && !st.Saved {
		v.AmountInput = core.MinAmount.Decimal()
	}
	return v
}

// render executes a named template into a buffer so that a template error
// never leaves a half-written response.
func (s *Server) render(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, fmt.Errorf("templates not loaded")
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
