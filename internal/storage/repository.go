package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"spendtracker/internal/core"
	ports "spendtracker/internal/sheets"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the local ledger backend. The same schema also serves
// as the archive the worker fills from published events.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.Ledger = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const insertExpense = `
INSERT INTO expenses (entered_by, category, payment_method, amount_cents, recorded_at, location)
VALUES (?, ?, ?, ?, ?, ?)`

// Append implements sheets.ExpenseWriter.
func (r *SQLiteRepository) Append(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	res, err := r.db.ExecContext(ctx, insertExpense,
		e.EnteredBy, e.Category, e.PaymentMethod, e.Amount.Cents, e.FormattedTimestamp(), e.Location.String())
	if err != nil {
		return "", ports.WriteError(fmt.Errorf("insert expense: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", ports.WriteError(fmt.Errorf("last insert id: %w", err))
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"category", e.Category,
		"amount_cents", e.Amount.Cents)

	return strconv.FormatInt(id, 10), nil
}

const insertArchived = `
INSERT OR IGNORE INTO expenses (entered_by, category, payment_method, amount_cents, recorded_at, location, event_id)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// Archive stores an expense received as an event. Redelivered events are
// ignored; the returned bool reports whether a row was written.
func (r *SQLiteRepository) Archive(ctx context.Context, eventID string, e core.Expense) (bool, error) {
	if eventID == "" {
		return false, errors.New("missing event id")
	}
	if err := e.Validate(); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}
	res, err := r.db.ExecContext(ctx, insertArchived,
		e.EnteredBy, e.Category, e.PaymentMethod, e.Amount.Cents, e.FormattedTimestamp(), e.Location.String(), eventID)
	if err != nil {
		return false, ports.WriteError(fmt.Errorf("archive expense %s: %w", eventID, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, ports.WriteError(fmt.Errorf("rows affected: %w", err))
	}
	if n == 0 {
		slog.InfoContext(ctx, "Duplicate expense event ignored", "event_id", eventID)
		return false, nil
	}
	slog.InfoContext(ctx, "Expense archived", "event_id", eventID, "category", e.Category)
	return true, nil
}

const selectExpenses = `
SELECT entered_by, category, payment_method, amount_cents, recorded_at, location
FROM expenses
ORDER BY id`

// ReadAll implements sheets.LedgerReader. Rows come back in insertion order
// under the canonical headers.
func (r *SQLiteRepository) ReadAll(ctx context.Context) (core.Table, error) {
	rows, err := r.db.QueryContext(ctx, selectExpenses)
	if err != nil {
		return core.Table{}, ports.ReadError(fmt.Errorf("query expenses: %w", err))
	}
	defer rows.Close()

	t := core.Table{Headers: append([]string(nil), core.Headers...)}
	for rows.Next() {
		var (
			enteredBy, category, payment, recordedAt, loc string
			cents                                         int64
		)
		if err := rows.Scan(&enteredBy, &category, &payment, &cents, &recordedAt, &loc); err != nil {
			return core.Table{}, ports.ReadError(fmt.Errorf("scan expense: %w", err))
		}
		t.Rows = append(t.Rows, []string{
			enteredBy, category, payment, core.Money{Cents: cents}.Decimal(), recordedAt, loc,
		})
	}
	if err := rows.Err(); err != nil {
		return core.Table{}, ports.ReadError(fmt.Errorf("iterate expenses: %w", err))
	}
	return t, nil
}
