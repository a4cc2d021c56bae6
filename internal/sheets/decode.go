package sheets

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cheques/internal/core"
)

// DecodeRows turns the remote row objects into checks. Rows without a
// parsable date or without an amount are dropped; the rest get ids in
// their order of appearance.
func DecodeRows(rows []map[string]any, loc *time.Location) []core.Check {
	out := make([]core.Check, 0, len(rows))
	for _, row := range rows {
		c, ok := DecodeRow(row, loc)
		if !ok {
			continue
		}
		c.ID = len(out)
		out = append(out, c)
	}
	return out
}

// DecodeRow converts one row. ok is false for rows DecodeRows would drop.
func DecodeRow(row map[string]any, loc *time.Location) (core.Check, bool) {
	date, err := core.ParseDate(text(row[string(core.FieldDate)]), loc)
	if err != nil {
		return core.Check{}, false
	}
	rawAmount, ok := row[string(core.FieldAmount)]
	if !ok || rawAmount == nil || text(rawAmount) == "" {
		return core.Check{}, false
	}

	c := core.Check{
		Date:        date,
		Amount:      core.AmountFromAny(rawAmount),
		Paid:        core.AmountFromAny(row[string(core.FieldPaid)]),
		Bank:        text(row[string(core.FieldBank)]),
		Number:      text(row[string(core.FieldNumber)]),
		Talon:       text(row[string(core.FieldTalon)]),
		Category:    text(row[string(core.FieldCategory)]),
		Group:       text(row[string(core.FieldGroup)]),
		Observation: text(row[string(core.FieldObservation)]),
	}
	if pd, err := core.ParseDate(text(row[string(core.FieldPaymentDate)]), loc); err == nil {
		c.PaymentDate = &pd
	}
	return c, true
}

// KeepRow reports whether a header-indexed sheet row survives DecodeRows.
// The Sheets and SQLite backends use it to map positional ids to rows.
func KeepRow(row map[string]any, loc *time.Location) bool {
	_, ok := DecodeRow(row, loc)
	return ok
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
