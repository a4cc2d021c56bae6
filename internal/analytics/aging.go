package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"cheques/internal/core"
)

// AgingBuckets are the day ranges of the aging chart. Upper bounds are
// inclusive and the last bucket is open.
var AgingBuckets = []struct {
	Label string
	Max   int
}{
	{"0-30 días", 30},
	{"31-60 días", 60},
	{"61-90 días", 90},
	{"91-120 días", 120},
	{">120 días", -1},
}

// AgingChart is the overdue balance by days past due. It is only shown
// while there is something overdue.
type AgingChart struct {
	Chart
	Total   decimal.Decimal `json:"total"`
	Visible bool            `json:"visible"`
}

// AgingBucket returns the bucket index for a number of days overdue.
func AgingBucket(days int) int {
	for i, b := range AgingBuckets {
		if b.Max < 0 || days <= b.Max {
			return i
		}
	}
	return len(AgingBuckets) - 1
}

// Aging sums the balance of overdue checks per bucket.
func Aging(records []core.Check, now time.Time) AgingChart {
	n := len(AgingBuckets)
	keys := make([]string, n)
	for i, b := range AgingBuckets {
		keys[i] = b.Label
	}
	values := zeros(n)
	total := decimal.Zero
	for _, c := range records {
		if !c.IsOverdue(now) {
			continue
		}
		i := AgingBucket(c.DaysOverdue(now))
		values[i] = values[i].Add(c.Balance())
		total = total.Add(c.Balance())
	}
	return AgingChart{
		Chart: Chart{
			Keys:     keys,
			Labels:   keys,
			Datasets: []Dataset{{Name: "Saldo Vencido", Values: values}},
		},
		Total:   total,
		Visible: total.IsPositive(),
	}
}
