// Package export turns the whole ledger into a downloadable file.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"spendtracker/internal/core"
	ports "spendtracker/internal/sheets"
)

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	filenameLayout = "20060102_150405"
	sheetName      = "Expenses"
)

// ErrNoData is returned when the ledger holds no records.
var ErrNoData = errors.New("no data available to download")

// Result is a finished export blob.
type Result struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// Filename returns expense_data_YYYYMMDD_HHMMSS.<ext> for now.
func Filename(now time.Time, ext string) string {
	return fmt.Sprintf("expense_data_%s.%s", now.Format(filenameLayout), ext)
}

// CSV renders every ledger record as comma-separated UTF-8 text, header row
// first, in the ledger's own column order.
func CSV(ctx context.Context, r ports.LedgerReader, now time.Time) (Result, error) {
	t, err := load(ctx, r)
	if err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Headers); err != nil {
		return Result{}, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return Result{}, fmt.Errorf("write csv rows: %w", err)
	}

	return Result{
		Filename:    Filename(now, "csv"),
		ContentType: ContentTypeCSV,
		Data:        buf.Bytes(),
		Rows:        len(t.Rows),
	}, nil
}

// XLSX renders the same table as an Excel workbook with a single sheet.
// Amount cells are written as numbers when they parse.
func XLSX(ctx context.Context, r ports.LedgerReader, now time.Time) (Result, error) {
	t, err := load(ctx, r)
	if err != nil {
		return Result{}, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return Result{}, fmt.Errorf("rename sheet: %w", err)
	}

	amountCol := -1
	for i, h := range t.Headers {
		if h == "Amount" {
			amountCol = i
		}
		if err := setCell(f, i, 1, h); err != nil {
			return Result{}, err
		}
	}
	for r, row := range t.Rows {
		for c, v := range row {
			var value any = v
			if c == amountCol {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					value = n
				}
			}
			if err := setCell(f, c, r+2, value); err != nil {
				return Result{}, err
			}
		}
	}

	if last, err := excelize.ColumnNumberToName(len(t.Headers)); err == nil {
		_ = f.SetColWidth(sheetName, "A", last, 18)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return Result{}, fmt.Errorf("write workbook: %w", err)
	}

	return Result{
		Filename:    Filename(now, "xlsx"),
		ContentType: ContentTypeXLSX,
		Data:        buf.Bytes(),
		Rows:        len(t.Rows),
	}, nil
}

func load(ctx context.Context, r ports.LedgerReader) (core.Table, error) {
	t, err := r.ReadAll(ctx)
	if err != nil {
		return core.Table{}, err
	}
	if len(t.Headers) == 0 || t.Empty() {
		return core.Table{}, ErrNoData
	}
	return t, nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		return fmt.Errorf("set %s: %w", cell, err)
	}
	return nil
}
