package http

import (
	"errors"
	"net/http"
	"strings"

	"spendtracker/internal/core"
	ports "spendtracker/internal/sheets"
	"spendtracker/internal/wizard"
)

// sanitizeInput trims whitespace and drops control characters other than tab
// and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		if r == 127 {
			return -1
		}
		return r
	}, s)
}

// formatRupees renders cents as "₹12.50".
func formatRupees(cents int64) string {
	m := core.Money{Cents: cents}
	if cents < 0 {
		return "-₹" + core.Money{Cents: -cents}.Decimal()
	}
	return "₹" + m.Decimal()
}

// isHTMX reports whether r came from htmx rather than a plain form post.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// userMessage maps an error from the wizard or the ledger to the sentence
// shown to the user, and whether it should be shown as an error (as opposed
// to a warning).
func userMessage(err error) (string, NotificationType) {
	switch {
	case errors.Is(err, core.ErrAmountTooSmall):
		return "Amount must be at least " + formatRupees(core.MinAmount.Cents) + ".", NotificationWarning
	case errors.Is(err, core.ErrInvalidAmount):
		return "Please enter a valid amount, for example 250 or 99.50.", NotificationWarning
	case errors.Is(err, wizard.ErrNoIdentity):
		return "Please select a name first!", NotificationWarning
	case errors.Is(err, wizard.ErrUnknownIdentity):
		return "Please choose one of the listed names.", NotificationWarning
	case errors.Is(err, wizard.ErrNoCategory), errors.Is(err, wizard.ErrUnknownCategory):
		return "Please select a category from the list.", NotificationWarning
	case errors.Is(err, wizard.ErrNewCategoryRequired):
		return "Enter a name for the new category.", NotificationInfo
	case errors.Is(err, wizard.ErrNoPayment), errors.Is(err, wizard.ErrUnknownPayment):
		return "Please choose a payment method.", NotificationWarning
	case errors.Is(err, wizard.ErrCategoryNotSaved):
		return "Could not save the new category. Please try again.", NotificationError
	case errors.Is(err, core.ErrValidation):
		return "Please check the entry and try again.", NotificationWarning
	case errors.Is(err, wizard.ErrWrongStep):
		return "That step is already complete.", NotificationInfo
	case errors.Is(err, wizard.ErrAlreadySaved):
		return "This expense is already saved.", NotificationInfo
	case errors.Is(err, wizard.ErrNotSaved):
		return "Save the current expense first.", NotificationInfo
	case errors.Is(err, ports.ErrAuth):
		return "Could not sign in to the expense sheet. Check the credentials and try again.", NotificationError
	case errors.Is(err, ports.ErrWrite):
		return "Could not save the expense. Nothing was recorded; please try again.", NotificationError
	case errors.Is(err, ports.ErrRead):
		return "Could not read the expense sheet. Please try again.", NotificationError
	default:
		return "Something went wrong. Please try again.", NotificationError
	}
}
