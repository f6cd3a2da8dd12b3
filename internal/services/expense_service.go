package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spendtracker/internal/amqp"
	"spendtracker/internal/core"
	ports "spendtracker/internal/sheets"
)

// Publisher announces committed expenses. *amqp.Client implements it.
type Publisher interface {
	PublishExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error
}

// ExpenseService decorates a ledger: every successful append is followed by
// an expense.recorded event. The ledger stays the source of truth, so a
// failed publish is logged and never fails the append.
type ExpenseService struct {
	ledger    ports.Ledger
	publisher Publisher
	closers   []func() error
}

var _ ports.Ledger = (*ExpenseService)(nil)

// NewExpenseService wraps ledger. A nil publisher disables events. closers
// run on Close in order, typically the publisher's connection.
func NewExpenseService(ledger ports.Ledger, publisher Publisher, closers ...func() error) *ExpenseService {
	return &ExpenseService{
		ledger:    ledger,
		publisher: publisher,
		closers:   closers,
	}
}

// Append implements sheets.ExpenseWriter.
func (s *ExpenseService) Append(ctx context.Context, e core.Expense) (string, error) {
	if s.ledger == nil {
		return "", ports.WriteError(errors.New("no ledger configured"))
	}
	ref, err := s.ledger.Append(ctx, e)
	if err != nil {
		return "", err
	}

	if err := s.publish(ctx, ref, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense recorded message", "ref", ref, "error", err)
	}
	return ref, nil
}

// ReadAll implements sheets.LedgerReader.
func (s *ExpenseService) ReadAll(ctx context.Context) (core.Table, error) {
	if s.ledger == nil {
		return core.Table{}, ports.ReadError(errors.New("no ledger configured"))
	}
	return s.ledger.ReadAll(ctx)
}

func (s *ExpenseService) publish(ctx context.Context, ref string, e core.Expense) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping expense event")
		return nil
	}
	return s.publisher.PublishExpenseRecorded(ctx, amqp.NewExpenseRecordedMessage(ref, e))
}

func (s *ExpenseService) Close() error {
	var errs []error
	for _, c := range s.closers {
		if c == nil {
			continue
		}
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}
