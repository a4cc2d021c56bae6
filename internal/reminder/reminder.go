// Package reminder builds the digest of checks that are overdue or about
// to fall due.
package reminder

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cheques/internal/core"
)

// DefaultWindowDays is the due-soon horizon when none is configured.
const DefaultWindowDays = 15

// Item is one check in a digest. Days counts until due for due-soon items
// and since due for overdue ones.
type Item struct {
	ID      int             `json:"id"`
	Date    string          `json:"date"`
	Bank    string          `json:"bank,omitempty"`
	Number  string          `json:"number,omitempty"`
	Balance decimal.Decimal `json:"balance"`
	Days    int             `json:"days"`
}

type Digest struct {
	GeneratedAt  time.Time       `json:"generatedAt"`
	WindowDays   int             `json:"windowDays"`
	DueSoon      []Item          `json:"dueSoon"`
	Overdue      []Item          `json:"overdue"`
	DueSoonTotal decimal.Decimal `json:"dueSoonTotal"`
	OverdueTotal decimal.Decimal `json:"overdueTotal"`
}

// Build collects unpaid checks due within window days (today included) and
// overdue ones. Due-soon items are ordered by date, overdue items oldest
// first.
func Build(records []core.Check, now time.Time, window int) Digest {
	if window <= 0 {
		window = DefaultWindowDays
	}
	d := Digest{
		GeneratedAt:  now,
		WindowDays:   window,
		DueSoon:      []Item{},
		Overdue:      []Item{},
		DueSoonTotal: decimal.Zero,
		OverdueTotal: decimal.Zero,
	}
	for _, c := range records {
		if !c.HasBalance() {
			continue
		}
		item := Item{ID: c.ID, Date: core.ISODate(c.Date), Bank: c.Bank, Number: c.Number, Balance: c.Balance()}
		switch days := c.DaysUntilDue(now); {
		case c.IsOverdue(now):
			item.Days = c.DaysOverdue(now)
			d.Overdue = append(d.Overdue, item)
			d.OverdueTotal = d.OverdueTotal.Add(item.Balance)
		case days >= 0 && days <= window:
			item.Days = days
			d.DueSoon = append(d.DueSoon, item)
			d.DueSoonTotal = d.DueSoonTotal.Add(item.Balance)
		}
	}
	slices.SortStableFunc(d.DueSoon, func(a, b Item) int { return strings.Compare(a.Date, b.Date) })
	slices.SortStableFunc(d.Overdue, func(a, b Item) int { return b.Days - a.Days })
	return d
}

// Empty reports whether nothing needs attention.
func (d Digest) Empty() bool { return len(d.DueSoon) == 0 && len(d.Overdue) == 0 }

func (d Digest) JSON() ([]byte, error) { return json.Marshal(d) }

// Text renders the digest for a log line or a message body.
func (d Digest) Text() string {
	if d.Empty() {
		return "Sin cheques vencidos ni por vencer."
	}
	var b strings.Builder
	if len(d.Overdue) > 0 {
		fmt.Fprintf(&b, "Vencidos: %d (%s)\n", len(d.Overdue), core.FormatARS(d.OverdueTotal))
		for _, it := range d.Overdue {
			fmt.Fprintf(&b, "  %s %s %s hace %d días %s\n", it.Date, it.Bank, it.Number, it.Days, core.FormatARS(it.Balance))
		}
	}
	if len(d.DueSoon) > 0 {
		fmt.Fprintf(&b, "Vencen en %d días: %d (%s)\n", d.WindowDays, len(d.DueSoon), core.FormatARS(d.DueSoonTotal))
		for _, it := range d.DueSoon {
			fmt.Fprintf(&b, "  %s %s %s en %d días %s\n", it.Date, it.Bank, it.Number, it.Days, core.FormatARS(it.Balance))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
