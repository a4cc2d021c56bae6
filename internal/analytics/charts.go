package analytics

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"cheques/internal/core"
	"cheques/internal/filter"
)

const (
	evolutionBack    = 3
	evolutionMonths  = 8
	upcomingDays     = 30
	projectionMonths = 6
)

// Dataset is one bar series of a chart, aligned with the chart labels.
type Dataset struct {
	Name   string            `json:"name"`
	Values []decimal.Decimal `json:"values"`
}

// Chart is a labelled set of buckets. When Filter is set, selecting bucket
// i toggles Filter to Keys[i].
type Chart struct {
	Filter   filter.Key `json:"filter,omitempty"`
	Keys     []string   `json:"keys"`
	Labels   []string   `json:"labels"`
	Datasets []Dataset  `json:"datasets"`
}

// Len is the number of buckets.
func (ch Chart) Len() int { return len(ch.Keys) }

// Value returns bucket i of the first dataset.
func (ch Chart) Value(i int) decimal.Decimal {
	if len(ch.Datasets) == 0 || i < 0 || i >= len(ch.Datasets[0].Values) {
		return decimal.Zero
	}
	return ch.Datasets[0].Values[i]
}

// Toggle applies a selection of bucket i to s.
func (ch Chart) Toggle(s filter.Set, i int) filter.Set {
	if ch.Filter == "" || i < 0 || i >= len(ch.Keys) {
		return s
	}
	return s.Toggle(ch.Filter, ch.Keys[i])
}

// Charts bundles every chart of the dashboard.
type Charts struct {
	Evolution  Chart      `json:"evolution"`
	Upcoming   Chart      `json:"upcoming"`
	Breakdown  Chart      `json:"breakdown"`
	Banks      Chart      `json:"banks"`
	Projection Chart      `json:"projection"`
	Aging      AgingChart `json:"aging"`
}

// BuildCharts computes all charts over an already filtered list.
func BuildCharts(records []core.Check, drill DrillDown, now time.Time) Charts {
	return Charts{
		Evolution:  MonthlyEvolution(records, now),
		Upcoming:   UpcomingDue(records, now),
		Breakdown:  ExpenseBreakdown(records, drill),
		Banks:      BalanceByBank(records),
		Projection: CashFlowProjection(records, now),
		Aging:      Aging(records, now),
	}
}

func monthWindow(now time.Time, from, n int) ([]string, []string) {
	keys := make([]string, n)
	labels := make([]string, n)
	for i := range n {
		m := core.AddMonths(now, from+i)
		keys[i] = core.MonthKey(m)
		labels[i] = core.MonthLabel(m)
	}
	return keys, labels
}

func zeros(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.Zero
	}
	return out
}

// MonthlyEvolution sums issued and paid amounts over an eight month window
// running from three months back to four months ahead. Empty months stay at
// zero.
func MonthlyEvolution(records []core.Check, now time.Time) Chart {
	keys, labels := monthWindow(now, -evolutionBack, evolutionMonths)
	issued, paid := zeros(len(keys)), zeros(len(keys))
	for _, c := range records {
		i := slices.Index(keys, core.MonthKey(c.Date))
		if i < 0 {
			continue
		}
		issued[i] = issued[i].Add(c.Amount)
		paid[i] = paid[i].Add(c.Paid)
	}
	return Chart{
		Filter: filter.YearMonth,
		Keys:   keys,
		Labels: labels,
		Datasets: []Dataset{
			{Name: "Importe Emitido", Values: issued},
			{Name: "Importe Pagado", Values: paid},
		},
	}
}

// UpcomingDue sums amounts per day from today to thirty days ahead. Only
// days with at least one check appear, in ascending order.
func UpcomingDue(records []core.Check, now time.Time) Chart {
	today := core.StartOfDay(now)
	limit := today.AddDate(0, 0, upcomingDays)

	sums := map[string]decimal.Decimal{}
	days := map[string]time.Time{}
	for _, c := range records {
		d := core.StartOfDay(c.Date)
		if d.Before(today) || d.After(limit) {
			continue
		}
		k := core.ISODate(d)
		sums[k] = sums[k].Add(c.Amount)
		days[k] = d
	}

	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	labels := make([]string, len(keys))
	values := make([]decimal.Decimal, len(keys))
	for i, k := range keys {
		labels[i] = core.ShortDayLabel(days[k])
		values[i] = sums[k]
	}
	return Chart{
		Filter:   filter.ExactDate,
		Keys:     keys,
		Labels:   labels,
		Datasets: []Dataset{{Name: "Importes a Vencer", Values: values}},
	}
}

// BalanceByBank sums the positive balances per bank. Checks without a bank
// or without anything owed are skipped, so an overpaid check does not
// offset the others. Only banks still owed more than the tolerance appear,
// largest first.
func BalanceByBank(records []core.Check) Chart {
	t := newTally()
	for _, c := range records {
		bal := c.Balance()
		if c.Bank == "" || !bal.IsPositive() {
			continue
		}
		t.add(c.Bank, c.Bank, bal)
	}
	t.keep(func(v decimal.Decimal) bool { return v.GreaterThan(core.Tolerance) })
	t.sortDesc()
	return t.chart(filter.Bank, "Saldo Pendiente")
}

// CashFlowProjection sums amounts over six months starting with the current
// one. Empty months stay at zero.
func CashFlowProjection(records []core.Check, now time.Time) Chart {
	keys, labels := monthWindow(now, 0, projectionMonths)
	values := zeros(len(keys))
	for _, c := range records {
		if i := slices.Index(keys, core.MonthKey(c.Date)); i >= 0 {
			values[i] = values[i].Add(c.Amount)
		}
	}
	return Chart{
		Filter:   filter.YearMonth,
		Keys:     keys,
		Labels:   labels,
		Datasets: []Dataset{{Name: "Flujo de Caja Proyectado", Values: values}},
	}
}

// tally accumulates sums per key, remembering first-seen order.
type tally struct {
	order  []string
	labels map[string]string
	sums   map[string]decimal.Decimal
}

func newTally() *tally {
	return &tally{labels: map[string]string{}, sums: map[string]decimal.Decimal{}}
}

func (t *tally) add(key, label string, v decimal.Decimal) {
	if _, ok := t.sums[key]; !ok {
		t.order = append(t.order, key)
		t.labels[key] = label
		t.sums[key] = decimal.Zero
	}
	t.sums[key] = t.sums[key].Add(v)
}

func (t *tally) keep(pred func(decimal.Decimal) bool) {
	t.order = slices.DeleteFunc(t.order, func(k string) bool { return !pred(t.sums[k]) })
}

func (t *tally) sortDesc() {
	slices.SortStableFunc(t.order, func(a, b string) int {
		return t.sums[b].Cmp(t.sums[a])
	})
}

func (t *tally) chart(key filter.Key, name string) Chart {
	ch := Chart{
		Filter: key,
		Keys:   make([]string, len(t.order)),
		Labels: make([]string, len(t.order)),
	}
	values := make([]decimal.Decimal, len(t.order))
	for i, k := range t.order {
		ch.Keys[i] = k
		ch.Labels[i] = t.labels[k]
		values[i] = t.sums[k]
	}
	ch.Datasets = []Dataset{{Name: name, Values: values}}
	return ch
}
