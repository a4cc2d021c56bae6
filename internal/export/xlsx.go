package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"cheques/internal/core"
)

var columnWidths = []float64{14, 10, 16, 14, 36, 14, 14, 14, 14, 12}

// WriteXLSX writes the report as a single-sheet workbook. Amounts are
// numeric cells.
func WriteXLSX(w io.Writer, records []core.Check, now time.Time) error {
	if len(records) == 0 {
		return ErrNoData
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, l := range Lines(records, now) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			core.FormatDay(l.Date),
			l.DaysToDue,
			l.Bank,
			l.Number,
			l.Observation,
			l.Amount.Round(2).InexactFloat64(),
			l.Paid.Round(2).InexactFloat64(),
			l.Balance.Round(2).InexactFloat64(),
			paymentDay(l),
			string(l.Condition),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
