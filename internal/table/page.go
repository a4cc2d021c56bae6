package table

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cheques/internal/core"
)

// PageSize is the number of rows per table page.
const PageSize = 15

// Page is one slice of the sorted list. Start and End are 1-based item
// positions for display.
type Page struct {
	Items     []core.Check `json:"-"`
	Number    int          `json:"page"`
	PageCount int          `json:"pageCount"`
	Total     int          `json:"total"`
	Start     int          `json:"start"`
	End       int          `json:"end"`
}

// Paginate cuts page n out of records. The page is not clamped: a page past
// the end yields no items.
func Paginate(records []core.Check, n, size int) Page {
	if size <= 0 {
		size = PageSize
	}
	if n < 1 {
		n = 1
	}
	total := len(records)
	p := Page{
		Number:    n,
		PageCount: (total + size - 1) / size,
		Total:     total,
	}
	from := (n - 1) * size
	to := min(from+size, total)
	p.Start = from + 1
	p.End = to
	if from < total {
		p.Items = records[from:to]
	}
	return p
}

// HasPrev and HasNext drive the pager buttons.
func (p Page) HasPrev() bool { return p.Number > 1 }
func (p Page) HasNext() bool { return p.Number < p.PageCount }

const emptySummary = "No se encontraron cheques con los filtros aplicados."

// Summary is the line shown above the table.
type Summary struct {
	Text    string          `json:"text"`
	Pending decimal.Decimal `json:"pending"`
}

// Summarize describes page p of records. Pending is the balance of every
// record, not only the visible page.
func Summarize(records []core.Check, p Page) Summary {
	if len(records) == 0 {
		return Summary{Text: emptySummary, Pending: decimal.Zero}
	}
	pending := decimal.Zero
	for _, c := range records {
		pending = pending.Add(c.Balance())
	}
	return Summary{
		Text: fmt.Sprintf("Mostrando %d-%d de %d cheques (Saldo pendiente: %s)",
			p.Start, p.End, len(records), core.FormatARS(pending)),
		Pending: pending,
	}
}

// NoHighlight marks the absence of a highlighted row.
const NoHighlight = -1

// Row is a check decorated for display.
type Row struct {
	core.Check
	Balance     decimal.Decimal `json:"balance"`
	DaysToDue   int             `json:"daysToDue"`
	Condition   core.Condition  `json:"condition"`
	DueSoon     bool            `json:"dueSoon"`
	Overdue     bool            `json:"overdue"`
	Highlighted bool            `json:"highlighted"`
}

// Rows decorates the checks of a page.
func Rows(items []core.Check, now time.Time, highlight int) []Row {
	out := make([]Row, 0, len(items))
	for _, c := range items {
		days := c.DaysUntilDue(now)
		out = append(out, Row{
			Check:       c,
			Balance:     c.Balance(),
			DaysToDue:   days,
			Condition:   c.ConditionAt(now),
			DueSoon:     c.DueSoon(now),
			Overdue:     days < 0 && c.HasBalance(),
			Highlighted: highlight != NoHighlight && c.ID == highlight,
		})
	}
	return out
}
