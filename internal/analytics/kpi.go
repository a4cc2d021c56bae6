// Package analytics derives the dashboard KPIs, the period comparison and
// the chart series from a check list. Every function here is pure.
package analytics

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"cheques/internal/core"
	"cheques/internal/filter"
)

// KPIs are the headline totals of a check list.
type KPIs struct {
	Issued  decimal.Decimal `json:"issued"`
	Paid    decimal.Decimal `json:"paid"`
	Pending decimal.Decimal `json:"pending"`
	Count   int             `json:"count"`
	Overdue decimal.Decimal `json:"overdue"`
}

// ComputeKPIs totals issued and paid amounts. Count only includes checks
// that still carry a balance.
func ComputeKPIs(records []core.Check, now time.Time) KPIs {
	k := KPIs{Issued: decimal.Zero, Paid: decimal.Zero, Overdue: decimal.Zero}
	for _, c := range records {
		k.Issued = k.Issued.Add(c.Amount)
		k.Paid = k.Paid.Add(c.Paid)
		if c.HasBalance() {
			k.Count++
		}
		if c.IsOverdue(now) {
			k.Overdue = k.Overdue.Add(c.Balance())
		}
	}
	k.Pending = k.Issued.Sub(k.Paid)
	return k
}

// Tone tells a renderer how to color a change.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneNeutral  Tone = "neutral"
)

// neutralBand is the change, in percent, below which a KPI counts as flat.
const neutralBand = 0.1

// Change is the movement of one KPI against the previous period.
type Change struct {
	Percent float64 `json:"percent"`
	Tone    Tone    `json:"tone"`
	Label   string  `json:"label"`
}

// Comparison holds the per-KPI changes against the previous period.
type Comparison struct {
	Period   string `json:"period"`
	Previous KPIs   `json:"previous"`
	Issued   Change `json:"issued"`
	Paid     Change `json:"paid"`
	Pending  Change `json:"pending"`
	Count    Change `json:"count"`
	Overdue  Change `json:"overdue"`
}

// Compare measures current against the period before the one selected by
// the year and month filters. With a year and month the previous calendar
// month is used, with only a year the previous year. Without a year filter
// there is nothing to compare and Compare returns nil. The previous period
// is always taken from all records, ignoring the other filters.
func Compare(current KPIs, all []core.Check, s filter.Set, now time.Time) *Comparison {
	yv, ok := s.Get(filter.Year)
	if !ok {
		return nil
	}
	year, err := strconv.Atoi(yv)
	if err != nil {
		return nil
	}

	var (
		period string
		inPrev func(core.Check) bool
	)
	if mv, ok := s.Get(filter.MonthNumber); ok {
		month, err := strconv.Atoi(mv)
		if err != nil || month < 1 || month > 12 {
			return nil
		}
		prev := time.Date(year, time.Month(month)-1, 1, 0, 0, 0, 0, time.UTC)
		period = core.MonthKey(prev)
		inPrev = func(c core.Check) bool {
			return c.Date.Year() == prev.Year() && c.Date.Month() == prev.Month()
		}
	} else {
		period = strconv.Itoa(year - 1)
		inPrev = func(c core.Check) bool { return c.Date.Year() == year-1 }
	}

	var prevRecords []core.Check
	for _, c := range all {
		if inPrev(c) {
			prevRecords = append(prevRecords, c)
		}
	}
	prev := ComputeKPIs(prevRecords, now)

	return &Comparison{
		Period:   period,
		Previous: prev,
		Issued:   change(current.Issued.InexactFloat64(), prev.Issued.InexactFloat64(), true),
		Paid:     change(current.Paid.InexactFloat64(), prev.Paid.InexactFloat64(), false),
		Pending:  change(current.Pending.InexactFloat64(), prev.Pending.InexactFloat64(), true),
		Count:    change(float64(current.Count), float64(prev.Count), true),
		Overdue:  change(current.Overdue.InexactFloat64(), prev.Overdue.InexactFloat64(), true),
	}
}

// PercentChange is (cur-prev)/prev in percent. A zero previous value reads
// as 100% growth when there is anything now, otherwise as no change.
func PercentChange(cur, prev float64) float64 {
	if prev == 0 {
		if cur > 0 {
			return 100
		}
		return 0
	}
	return (cur - prev) / prev * 100
}

func change(cur, prev float64, goodWhenDown bool) Change {
	pct := PercentChange(cur, prev)
	switch {
	case pct > neutralBand:
		return Change{Percent: pct, Tone: pick(goodWhenDown, ToneNegative, TonePositive), Label: core.FormatPercent(pct)}
	case pct < -neutralBand:
		return Change{Percent: pct, Tone: pick(goodWhenDown, TonePositive, ToneNegative), Label: core.FormatPercent(pct)}
	default:
		return Change{Percent: pct, Tone: ToneNeutral, Label: "~0%"}
	}
}

func pick(cond bool, a, b Tone) Tone {
	if cond {
		return a
	}
	return b
}
