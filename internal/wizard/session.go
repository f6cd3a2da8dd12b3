// Package wizard implements the four-step expense entry flow: name, category,
// payment method and amount, followed by a single ledger append.
//
// A Session is owned by one user session and is not safe for concurrent use;
// callers serialise access to it.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"spendtracker/internal/core"
	"spendtracker/internal/location"
	"spendtracker/internal/sheets"
)

type Step int

const (
	AwaitingName Step = iota + 1
	AwaitingCategory
	AwaitingPayment
	AwaitingAmount
)

func (s Step) String() string {
	switch s {
	case AwaitingName:
		return "awaiting_name"
	case AwaitingCategory:
		return "awaiting_category"
	case AwaitingPayment:
		return "awaiting_payment"
	case AwaitingAmount:
		return "awaiting_amount"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

var (
	DefaultIdentities     = []string{"Vikki", "Sneha"}
	DefaultPaymentMethods = []string{"BHIM", "Google Pay", "Cash"}
)

var (
	ErrNoIdentity          = fmt.Errorf("%w: please select a name first", core.ErrValidation)
	ErrUnknownIdentity     = fmt.Errorf("%w: unknown name", core.ErrValidation)
	ErrNoCategory          = fmt.Errorf("%w: please select a category", core.ErrValidation)
	ErrUnknownCategory     = fmt.Errorf("%w: unknown category", core.ErrValidation)
	ErrNewCategoryRequired = fmt.Errorf("%w: enter a new category", core.ErrValidation)
	ErrNoPayment           = fmt.Errorf("%w: please choose a payment method", core.ErrValidation)
	ErrUnknownPayment      = fmt.Errorf("%w: unknown payment method", core.ErrValidation)

	ErrWrongStep    = errors.New("action not available at this step")
	ErrAlreadySaved = errors.New("expense already saved")
	ErrNotSaved     = errors.New("no saved expense to continue from")

	// ErrCategoryNotSaved wraps a Category Store write failure.
	ErrCategoryNotSaved = errors.New("new category could not be saved")
)

// CategoryStore is the part of the category list the wizard mutates.
type CategoryStore interface {
	Contains(label string) bool
	Sentinel() string
	AddIfAbsent(label string) (bool, error)
}

type Options struct {
	Identities     []string
	PaymentMethods []string
	// Clock stamps committed records. Defaults to time.Now.
	Clock func() time.Time
}

// Draft holds the fields collected so far. A field is set only once its step
// has completed, so a Draft is complete exactly when step 4 may commit.
type Draft struct {
	Name     string
	Category string
	Payment  string
	Amount   core.Money
}

// Receipt describes the last committed record.
type Receipt struct {
	Expense core.Expense
	Ref     string
}

// State is a read-only snapshot used for rendering.
type State struct {
	Step             Step
	Saved            bool
	Draft            Draft
	Location         core.Location
	LocationResolved bool
	Receipt          Receipt
}

type Session struct {
	opts       Options
	ledger     sheets.ExpenseWriter
	categories CategoryStore

	step     Step
	saved    bool
	draft    Draft
	receipt  Receipt
	location core.Location
	located  bool
}

// NewSession starts a session at AwaitingName with an empty draft.
func NewSession(ledger sheets.ExpenseWriter, categories CategoryStore, opts Options) *Session {
	if len(opts.Identities) == 0 {
		opts.Identities = DefaultIdentities
	}
	if len(opts.PaymentMethods) == 0 {
		opts.PaymentMethods = DefaultPaymentMethods
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Session{
		opts:       opts,
		ledger:     ledger,
		categories: categories,
		step:       AwaitingName,
		location:   core.LocationUnavailable,
	}
}

func (s *Session) Step() Step { return s.step }

func (s *Session) Saved() bool { return s.saved }

func (s *Session) Identities() []string { return slices.Clone(s.opts.Identities) }

func (s *Session) PaymentMethods() []string { return slices.Clone(s.opts.PaymentMethods) }

func (s *Session) State() State {
	return State{
		Step:             s.step,
		Saved:            s.saved,
		Draft:            s.draft,
		Location:         s.location,
		LocationResolved: s.located,
		Receipt:          s.receipt,
	}
}

// ResolveLocation runs r the first time it is called and caches the result
// for the rest of the session. It reports whether r was consulted.
func (s *Session) ResolveLocation(ctx context.Context, r location.Resolver) bool {
	if s.located {
		return false
	}
	s.location = location.Lookup(ctx, r)
	s.located = true
	return true
}

// ConfirmName moves AwaitingName -> AwaitingCategory.
func (s *Session) ConfirmName(name string) error {
	if s.step != AwaitingName {
		return ErrWrongStep
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNoIdentity
	}
	if !slices.Contains(s.opts.Identities, name) {
		return ErrUnknownIdentity
	}
	s.draft.Name = name
	s.step = AwaitingCategory
	return nil
}

// ChooseCategory moves AwaitingCategory -> AwaitingPayment as soon as a
// category is resolved. Choosing the sentinel requires newLabel, which is
// added to the category store before the step advances.
func (s *Session) ChooseCategory(choice, newLabel string) error {
	if s.step != AwaitingCategory {
		return ErrWrongStep
	}
	choice = strings.TrimSpace(choice)
	var category string
	switch {
	case choice == "":
		return ErrNoCategory
	case choice == s.categories.Sentinel():
		label := strings.TrimSpace(newLabel)
		if label == "" {
			return ErrNewCategoryRequired
		}
		if _, err := s.categories.AddIfAbsent(label); err != nil {
			return fmt.Errorf("%w: %q: %w", ErrCategoryNotSaved, label, err)
		}
		category = label
	case !s.categories.Contains(choice):
		return ErrUnknownCategory
	default:
		category = choice
	}
	s.draft.Category = category
	s.step = AwaitingPayment
	return nil
}

// SelectPayment moves AwaitingPayment -> AwaitingAmount.
func (s *Session) SelectPayment(method string) error {
	if s.step != AwaitingPayment {
		return ErrWrongStep
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return ErrNoPayment
	}
	if !slices.Contains(s.opts.PaymentMethods, method) {
		return ErrUnknownPayment
	}
	s.draft.Payment = method
	s.step = AwaitingAmount
	return nil
}

// Save builds the record and appends it to the ledger. The session only
// changes when the append succeeds.
func (s *Session) Save(ctx context.Context, amount core.Money) (Receipt, error) {
	if s.saved {
		return Receipt{}, ErrAlreadySaved
	}
	if s.step != AwaitingAmount {
		return Receipt{}, ErrWrongStep
	}
	if err := amount.Validate(); err != nil {
		return Receipt{}, err
	}
	d := s.draft
	d.Amount = amount
	e := core.Expense{
		EnteredBy:     d.Name,
		Category:      d.Category,
		PaymentMethod: d.Payment,
		Amount:        d.Amount,
		Timestamp:     s.opts.Clock(),
		Location:      s.location,
	}
	if err := e.Validate(); err != nil {
		return Receipt{}, err
	}

	ref, err := s.ledger.Append(ctx, e)
	if err != nil {
		slog.ErrorContext(ctx, "Expense append failed", "error", err, "category", e.Category, "amount", e.Amount.Decimal())
		return Receipt{}, err
	}

	// A location that was never resolved stays fixed to the sentinel.
	s.located = true
	s.draft = d
	s.saved = true
	s.receipt = Receipt{Expense: e, Ref: ref}
	slog.DebugContext(ctx, "Draft committed", "ref", ref, "entered_by", e.EnteredBy, "category", e.Category, "payment", e.PaymentMethod, "amount", e.Amount.Decimal())
	return s.receipt, nil
}

// RecordAnother resets a saved session to AwaitingName. The resolved location
// survives the reset.
func (s *Session) RecordAnother() error {
	if !s.saved {
		return ErrNotSaved
	}
	s.draft = Draft{}
	s.receipt = Receipt{}
	s.saved = false
	s.step = AwaitingName
	return nil
}
