package sheets

import (
	"context"
	"errors"
	"fmt"

	"spendtracker/internal/core"
)

// Ports for outbound adapters.
type (
	ExpenseWriter interface {
		// Append stores one completed expense row and returns a backend
		// specific reference to it.
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// LedgerReader returns every stored row, header first, in the backend's
	// native column order.
	LedgerReader interface {
		ReadAll(ctx context.Context) (core.Table, error)
	}

	// Ledger is the Remote Ledger as seen by the wizard and the exporter.
	Ledger interface {
		ExpenseWriter
		LedgerReader
	}
)

// Error classes returned by ledger adapters. Use errors.Is to match them.
var (
	ErrAuth  = errors.New("ledger authentication failed")
	ErrWrite = errors.New("ledger write failed")
	ErrRead  = errors.New("ledger read failed")
)

// WriteError wraps err so that it matches ErrWrite.
func WriteError(err error) error {
	return classify(ErrWrite, err)
}

// ReadError wraps err so that it matches ErrRead.
func ReadError(err error) error {
	return classify(ErrRead, err)
}

// AuthError wraps err so that it matches ErrAuth.
func AuthError(err error) error {
	return classify(ErrAuth, err)
}

func classify(class, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, class) {
		return err
	}
	return fmt.Errorf("%w: %w", class, err)
}
