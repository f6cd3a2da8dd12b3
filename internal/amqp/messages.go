package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"spendtracker/internal/core"
)

// ExpenseRecordedMessage announces one committed ledger row. It carries the
// full record so consumers never need to read the ledger back.
type ExpenseRecordedMessage struct {
	ID        string         `json:"id"`
	Ref       string         `json:"ref,omitempty"`
	Expense   ExpensePayload `json:"expense"`
	Timestamp time.Time      `json:"timestamp"`
}

type ExpensePayload struct {
	EnteredBy     string    `json:"entered_by"`
	Category      string    `json:"category"`
	PaymentMethod string    `json:"payment_method"`
	AmountCents   int64     `json:"amount_cents"`
	RecordedAt    time.Time `json:"recorded_at"`
	Location      string    `json:"location"`
}

// NewExpenseRecordedMessage stamps e with a fresh event ID.
func NewExpenseRecordedMessage(ref string, e core.Expense) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		ID:  uuid.NewString(),
		Ref: ref,
		Expense: ExpensePayload{
			EnteredBy:     e.EnteredBy,
			Category:      e.Category,
			PaymentMethod: e.PaymentMethod,
			AmountCents:   e.Amount.Cents,
			RecordedAt:    e.Timestamp,
			Location:      e.Location.String(),
		},
		Timestamp: time.Now(),
	}
}

// ToExpense rebuilds the domain record carried by the message.
func (m *ExpenseRecordedMessage) ToExpense() core.Expense {
	return core.Expense{
		EnteredBy:     m.Expense.EnteredBy,
		Category:      m.Expense.Category,
		PaymentMethod: m.Expense.PaymentMethod,
		Amount:        core.Money{Cents: m.Expense.AmountCents},
		Timestamp:     m.Expense.RecordedAt,
		Location:      core.Location(m.Expense.Location),
	}
}

func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
