// Package table orders, pages and decorates the check list shown in the
// dashboard table.
package table

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"cheques/internal/core"
)

// SortKey is a sortable column. Besides the named keys any core.Field is
// accepted and compared as lowercased text.
type SortKey string

const (
	SortDate        SortKey = "FECHA"
	SortAmount      SortKey = "IMPORTE"
	SortPaymentDate SortKey = "FECHA DE PAGO"
	SortPaid        SortKey = "PAGADO"
	SortPaidStatus  SortKey = "PAGADO_STATUS"
	SortBalance     SortKey = "SALDO"
	SortDaysToDue   SortKey = "DIAS_VTO"
	SortCondition   SortKey = "CONDICION"
)

// ParseSortKey accepts the named keys and any column key.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(strings.TrimSpace(s))
	switch k {
	case SortDate, SortAmount, SortPaymentDate, SortPaid, SortPaidStatus, SortBalance, SortDaysToDue, SortCondition:
		return k, nil
	}
	if f, err := core.ParseField(string(k)); err == nil {
		return SortKey(f), nil
	}
	return "", fmt.Errorf("%w: sort key %q", core.ErrUnknownField, s)
}

type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
)

// SortConfig is the active sort. There is always exactly one.
type SortConfig struct {
	Key       SortKey   `json:"key"`
	Direction Direction `json:"direction"`
}

// DefaultSort shows the newest checks first.
var DefaultSort = SortConfig{Key: SortDate, Direction: Descending}

// Toggle is a click on a column header: the active column flips from
// ascending to descending, anything else starts ascending.
func Toggle(cur SortConfig, key SortKey) SortConfig {
	if cur.Key == key && cur.Direction == Ascending {
		return SortConfig{Key: key, Direction: Descending}
	}
	return SortConfig{Key: key, Direction: Ascending}
}

// Sort returns a sorted copy. Equal elements keep their input order and
// checks without a payment date sort last in either direction.
func Sort(records []core.Check, cfg SortConfig, now time.Time) []core.Check {
	out := slices.Clone(records)
	sign := 1
	if cfg.Direction == Descending {
		sign = -1
	}

	if cfg.Key == SortPaymentDate {
		slices.SortStableFunc(out, func(a, b core.Check) int {
			switch {
			case a.PaymentDate == nil && b.PaymentDate == nil:
				return 0
			case a.PaymentDate == nil:
				return 1
			case b.PaymentDate == nil:
				return -1
			}
			return sign * a.PaymentDate.Compare(*b.PaymentDate)
		})
		return out
	}

	compare := comparator(cfg.Key, now)
	slices.SortStableFunc(out, func(a, b core.Check) int {
		return sign * compare(a, b)
	})
	return out
}

func comparator(key SortKey, now time.Time) func(a, b core.Check) int {
	switch key {
	case SortDate:
		return func(a, b core.Check) int { return a.Date.Compare(b.Date) }
	case SortAmount:
		return func(a, b core.Check) int { return a.Amount.Cmp(b.Amount) }
	case SortPaid:
		return func(a, b core.Check) int { return a.Paid.Cmp(b.Paid) }
	case SortPaidStatus:
		return func(a, b core.Check) int {
			return cmpBool(a.Paid.IsPositive(), b.Paid.IsPositive())
		}
	case SortBalance:
		return func(a, b core.Check) int { return a.Balance().Cmp(b.Balance()) }
	case SortDaysToDue:
		return func(a, b core.Check) int {
			return cmp.Compare(a.DaysUntilDue(now), b.DaysUntilDue(now))
		}
	case SortCondition:
		return func(a, b core.Check) int {
			return cmp.Compare(a.ConditionAt(now), b.ConditionAt(now))
		}
	default:
		f := core.Field(key)
		return func(a, b core.Check) int {
			return cmp.Compare(strings.ToLower(a.Text(f)), strings.ToLower(b.Text(f)))
		}
	}
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
