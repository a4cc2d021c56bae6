// Package export renders the filtered, sorted check list as the CSV report
// and as an XLSX workbook with the same columns.
package export

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"cheques/internal/core"
)

// ErrNoData is returned when there is nothing to export.
var ErrNoData = errors.New("no data to export")

const (
	CSVFilename  = "reporte_cheques.csv"
	XLSXFilename = "reporte_cheques.xlsx"
	SheetName    = "Cheques"
)

// Headers are the report columns in order.
var Headers = []string{
	"Fecha de Cheque", "Días P/Vencimiento", "Banco", "Cheque N°", "Observaciones",
	"Importe", "Pagado", "Saldo", "Fecha de Pago", "Condición",
}

// Line is one report row before formatting.
type Line struct {
	Date        time.Time
	DaysToDue   int
	Bank        string
	Number      string
	Observation string
	Amount      decimal.Decimal
	Paid        decimal.Decimal
	Balance     decimal.Decimal
	PaymentDate *time.Time
	Condition   core.Condition
}

// Lines derives the report rows, keeping the order of records.
func Lines(records []core.Check, now time.Time) []Line {
	out := make([]Line, 0, len(records))
	for _, c := range records {
		out = append(out, Line{
			Date:        c.Date,
			DaysToDue:   c.DaysUntilDue(now),
			Bank:        c.Bank,
			Number:      c.Number,
			Observation: c.Observation,
			Amount:      c.Amount,
			Paid:        c.Paid,
			Balance:     c.Balance(),
			PaymentDate: c.PaymentDate,
			Condition:   c.ConditionAt(now),
		})
	}
	return out
}

func paymentDay(l Line) string {
	if l.PaymentDate == nil {
		return ""
	}
	return core.FormatDay(*l.PaymentDate)
}
