package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the local date-time format stored in the ledger.
const TimestampLayout = "2006-01-02 15:04:05"

// LocationUnavailable is recorded when no device position could be obtained.
const LocationUnavailable = "Not available"

type (
	Money struct {
		Cents int64
	}

	// Location is either a formatted "lat, lon" pair or LocationUnavailable.
	Location string

	// Expense is one committed ledger row. It is built once at save time and
	// never mutated afterwards.
	Expense struct {
		EnteredBy     string
		Category      string
		PaymentMethod string
		Amount        Money
		Timestamp     time.Time
		Location      Location
	}

	// Table is the ledger's native listing: a header row plus data rows in
	// the same column order.
	Table struct {
		Headers []string
		Rows    [][]string
	}
)

// ErrValidation is wrapped by every input validation failure so callers can
// tell "re-prompt the user" apart from infrastructure errors.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidAmount    = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrAmountTooSmall   = fmt.Errorf("%w: amount must be at least %s", ErrValidation, MinAmount.String())
	ErrEmptyEnteredBy   = fmt.Errorf("%w: no name selected", ErrValidation)
	ErrEmptyCategory    = fmt.Errorf("%w: no category selected", ErrValidation)
	ErrEmptyPayment     = fmt.Errorf("%w: no payment method selected", ErrValidation)
	ErrMissingTimestamp = fmt.Errorf("%w: missing timestamp", ErrValidation)
)

// MinAmount is the smallest amount accepted for an expense (1.00).
var MinAmount = Money{Cents: 100}

// Headers lists the canonical ledger columns in record order.
var Headers = []string{"Entered By", "Category", "Payment Method", "Amount", "Timestamp", "Location"}

func (m Money) Validate() error {
	if m.Cents < MinAmount.Cents {
		return ErrAmountTooSmall
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.EnteredBy) == "" {
		return ErrEmptyEnteredBy
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.PaymentMethod) == "" {
		return ErrEmptyPayment
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// FormattedTimestamp renders the commit time in TimestampLayout.
func (e Expense) FormattedTimestamp() string {
	return e.Timestamp.Format(TimestampLayout)
}

// Row returns the expense as string cells in Headers order.
func (e Expense) Row() []string {
	return []string{
		e.EnteredBy,
		e.Category,
		e.PaymentMethod,
		e.Amount.Decimal(),
		e.FormattedTimestamp(),
		e.Location.String(),
	}
}

// FormatLocation renders a coordinate pair to four decimal places.
func FormatLocation(lat, lon float64) Location {
	return Location(fmt.Sprintf("%.4f, %.4f", lat, lon))
}

func (l Location) String() string {
	if l == "" {
		return LocationUnavailable
	}
	return string(l)
}

// Available reports whether the location holds real coordinates.
func (l Location) Available() bool {
	return l != "" && l != LocationUnavailable
}

// Empty reports whether the table has no data rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}
