package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"spendtracker/internal/amqp"
	"spendtracker/internal/core"
)

// Archiver stores an expense keyed by its event ID.
type Archiver interface {
	Archive(ctx context.Context, eventID string, e core.Expense) (bool, error)
}

// ArchiveWorker mirrors expense.recorded events into a local archive.
type ArchiveWorker struct {
	archive Archiver
}

func NewArchiveWorker(archive Archiver) *ArchiveWorker {
	return &ArchiveWorker{archive: archive}
}

// HandleExpenseRecorded archives one event. Invalid payloads are logged and
// acknowledged so they are not redelivered forever; storage failures are
// returned so the broker requeues the message.
func (w *ArchiveWorker) HandleExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	if msg == nil || msg.ID == "" {
		slog.WarnContext(ctx, "Dropping expense event without ID")
		return nil
	}

	slog.InfoContext(ctx, "Processing expense recorded message", "id", msg.ID, "ref", msg.Ref)

	e := msg.ToExpense()
	inserted, err := w.archive.Archive(ctx, msg.ID, e)
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			slog.WarnContext(ctx, "Dropping invalid expense event", "id", msg.ID, "error", err)
			return nil
		}
		return fmt.Errorf("archive expense %s: %w", msg.ID, err)
	}

	if inserted {
		slog.InfoContext(ctx, "Expense archived",
			"id", msg.ID,
			"entered_by", e.EnteredBy,
			"category", e.Category,
			"amount", e.Amount.Decimal())
	}
	return nil
}
