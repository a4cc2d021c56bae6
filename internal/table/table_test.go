package table

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cheques/internal/core"
)

var now = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func ids(records []core.Check) []int {
	out := make([]int, 0, len(records))
	for _, c := range records {
		out = append(out, c.ID)
	}
	return out
}

func fixture() []core.Check {
	paidAt := day(2024, 3, 1)
	earlier := day(2024, 2, 1)
	return []core.Check{
		{ID: 0, Date: day(2024, 3, 10), Amount: amt(300), Bank: "macro"},
		{ID: 1, Date: day(2024, 3, 20), Amount: amt(100), Paid: amt(100), PaymentDate: &paidAt, Bank: "Galicia"},
		{ID: 2, Date: day(2024, 3, 18), Amount: amt(200), Paid: amt(50), Bank: "Nación"},
		{ID: 3, Date: day(2024, 3, 10), Amount: amt(50), Paid: amt(50), PaymentDate: &earlier, Bank: "BBVA"},
	}
}

func TestToggle(t *testing.T) {
	cfg := Toggle(DefaultSort, SortAmount)
	assert.Equal(t, SortConfig{SortAmount, Ascending}, cfg)

	cfg = Toggle(cfg, SortAmount)
	assert.Equal(t, SortConfig{SortAmount, Descending}, cfg)

	cfg = Toggle(cfg, SortAmount)
	assert.Equal(t, SortConfig{SortAmount, Ascending}, cfg)

	assert.Equal(t, SortConfig{SortDate, Ascending}, Toggle(DefaultSort, SortDate), "descending active column restarts ascending")
}

func TestSort(t *testing.T) {
	tests := []struct {
		name string
		cfg  SortConfig
		want []int
	}{
		{"date desc keeps ties stable", DefaultSort, []int{1, 2, 0, 3}},
		{"date asc", SortConfig{SortDate, Ascending}, []int{0, 3, 2, 1}},
		{"amount asc", SortConfig{SortAmount, Ascending}, []int{3, 1, 2, 0}},
		{"paid desc", SortConfig{SortPaid, Descending}, []int{1, 2, 3, 0}},
		{"paid status asc", SortConfig{SortPaidStatus, Ascending}, []int{0, 1, 2, 3}},
		{"balance desc", SortConfig{SortBalance, Descending}, []int{0, 2, 1, 3}},
		{"days to due asc", SortConfig{SortDaysToDue, Ascending}, []int{0, 3, 2, 1}},
		{"condition asc", SortConfig{SortCondition, Ascending}, []int{2, 1, 3, 0}},
		{"payment date asc nulls last", SortConfig{SortPaymentDate, Ascending}, []int{3, 1, 0, 2}},
		{"payment date desc nulls last", SortConfig{SortPaymentDate, Descending}, []int{1, 3, 0, 2}},
		{"text field case folded", SortConfig{SortKey(core.FieldBank), Ascending}, []int{3, 1, 0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Sort(fixture(), tt.cfg, now)))
		})
	}
}

func TestSortDoesNotMutateInput(t *testing.T) {
	data := fixture()
	_ = Sort(data, SortConfig{SortAmount, Ascending}, now)
	assert.Equal(t, []int{0, 1, 2, 3}, ids(data))
}

// distinctChecks gives every sortable column a distinct value per check,
// in an order unrelated to the ids.
func distinctChecks() []core.Check {
	perm := []int{4, 1, 6, 0, 3, 5, 2}
	n := len(perm)
	out := make([]core.Check, n)
	for i := range out {
		paidAt := day(2024, 2, 1+perm[(i+3)%n])
		out[i] = core.Check{
			ID:          i,
			Date:        day(2024, 3, 1+perm[i]*2),
			Amount:      amt(int64(100 + perm[(i+2)%n]*10)),
			Paid:        amt(int64(perm[(i+5)%n])),
			PaymentDate: &paidAt,
			Bank:        fmt.Sprintf("Banco %c", 'A'+perm[(i+1)%n]),
			Number:      fmt.Sprintf("N-%d", perm[(i+4)%n]),
		}
	}
	return out
}

func TestSortDescendingReversesAscending(t *testing.T) {
	keys := []SortKey{
		SortDate, SortAmount, SortPaid, SortBalance, SortDaysToDue, SortPaymentDate,
		SortKey(core.FieldBank), SortKey(core.FieldNumber),
	}
	for _, k := range keys {
		t.Run(string(k), func(t *testing.T) {
			asc := ids(Sort(distinctChecks(), SortConfig{k, Ascending}, now))
			desc := ids(Sort(distinctChecks(), SortConfig{k, Descending}, now))
			require.Len(t, asc, 7)
			assert.NotEqual(t, []int{0, 1, 2, 3, 4, 5, 6}, asc, "fixture must not be presorted")
			slices.Reverse(asc)
			assert.Equal(t, asc, desc)
		})
	}
}

func TestPagesConcatenateToSortedList(t *testing.T) {
	for _, n := range []int{0, 1, 14, 15, 16, 30, 31, 47} {
		t.Run(fmt.Sprintf("%d checks", n), func(t *testing.T) {
			data := makeChecks(n)
			for i := range data {
				data[i].Amount = amt(int64((i * 7) % 50))
			}
			sorted := Sort(data, SortConfig{SortAmount, Ascending}, now)

			first := Paginate(sorted, 1, PageSize)
			var got []int
			end := 0
			for page := 1; page <= first.PageCount; page++ {
				p := Paginate(sorted, page, PageSize)
				require.NotEmpty(t, p.Items)
				assert.Equal(t, end+1, p.Start, "no gap or overlap before page %d", page)
				assert.Equal(t, p.Start+len(p.Items)-1, p.End)
				end = p.End
				got = append(got, ids(p.Items)...)
			}
			assert.Equal(t, n, end)
			assert.Equal(t, ids(sorted), append([]int{}, got...))
			assert.Empty(t, Paginate(sorted, first.PageCount+1, PageSize).Items)
		})
	}
}

func makeChecks(n int) []core.Check {
	out := make([]core.Check, n)
	for i := range out {
		out[i] = core.Check{ID: i, Date: day(2024, 3, 1), Amount: amt(10)}
	}
	return out
}

func TestPaginate(t *testing.T) {
	data := makeChecks(20)

	p := Paginate(data, 1, PageSize)
	assert.Len(t, p.Items, 15)
	assert.Equal(t, 2, p.PageCount)
	assert.Equal(t, 1, p.Start)
	assert.Equal(t, 15, p.End)
	assert.False(t, p.HasPrev())
	assert.True(t, p.HasNext())

	p = Paginate(data, 2, PageSize)
	assert.Len(t, p.Items, 5)
	assert.Equal(t, 16, p.Start)
	assert.Equal(t, 20, p.End)
	assert.Equal(t, 15, p.Items[0].ID)
}

func TestPaginatePastEndIsNotClamped(t *testing.T) {
	p := Paginate(makeChecks(20), 3, PageSize)
	assert.Empty(t, p.Items)
	assert.Equal(t, 3, p.Number)
	assert.Equal(t, 2, p.PageCount)
}

func TestSummarize(t *testing.T) {
	data := makeChecks(20)
	data[0].Paid = amt(10)
	s := Summarize(data, Paginate(data, 2, PageSize))
	assert.Equal(t, "Mostrando 16-20 de 20 cheques (Saldo pendiente: $ 190,00)", s.Text)
	assert.Equal(t, "190", s.Pending.String())

	empty := Summarize(nil, Paginate(nil, 1, PageSize))
	assert.Equal(t, "No se encontraron cheques con los filtros aplicados.", empty.Text)
}

func TestRows(t *testing.T) {
	data := []core.Check{
		{ID: 0, Date: day(2024, 3, 20), Amount: amt(100)},
		{ID: 1, Date: day(2024, 3, 1), Amount: amt(100)},
		{ID: 2, Date: day(2024, 3, 1), Amount: amt(100), Paid: amt(100)},
		{ID: 3, Date: day(2024, 4, 1), Amount: amt(100)},
	}
	rows := Rows(data, now, 3)
	require.Len(t, rows, 4)

	assert.True(t, rows[0].DueSoon)
	assert.Equal(t, 5, rows[0].DaysToDue)
	assert.Equal(t, core.ConditionDue, rows[0].Condition)

	assert.True(t, rows[1].Overdue)
	assert.Equal(t, core.ConditionOverdue, rows[1].Condition)

	assert.False(t, rows[2].Overdue)
	assert.Equal(t, core.ConditionPaid, rows[2].Condition)
	assert.True(t, rows[2].Balance.IsZero())

	assert.False(t, rows[3].DueSoon)
	assert.True(t, rows[3].Highlighted)
	assert.False(t, rows[0].Highlighted)

	for _, r := range Rows(data, now, NoHighlight) {
		assert.False(t, r.Highlighted)
	}
}

func TestParseSortKey(t *testing.T) {
	k, err := ParseSortKey("SALDO")
	require.NoError(t, err)
	assert.Equal(t, SortBalance, k)

	k, err = ParseSortKey(" BANCO ")
	require.NoError(t, err)
	assert.Equal(t, SortKey(core.FieldBank), k)

	_, err = ParseSortKey("COLOR")
	assert.ErrorIs(t, err, core.ErrUnknownField)
}
