package core

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCheckDerivedValues(t *testing.T) {
	tests := []struct {
		name      string
		check     Check
		paid      bool
		overdue   bool
		days      int
		condition Condition
		dueSoon   bool
	}{
		{
			name:      "unpaid yesterday is overdue",
			check:     Check{Date: day(2024, 3, 14), Amount: decimal.NewFromInt(1000)},
			overdue:   true,
			days:      -1,
			condition: ConditionOverdue,
		},
		{
			name:      "unpaid today is due",
			check:     Check{Date: day(2024, 3, 15), Amount: decimal.NewFromInt(1000)},
			days:      0,
			condition: ConditionDue,
			dueSoon:   true,
		},
		{
			name:      "balance within tolerance is paid",
			check:     Check{Date: day(2024, 3, 1), Amount: decimal.RequireFromString("100.01"), Paid: decimal.NewFromInt(100)},
			paid:      true,
			days:      -14,
			condition: ConditionPaid,
		},
		{
			name:      "partial payment keeps balance",
			check:     Check{Date: day(2024, 3, 30), Amount: decimal.NewFromInt(100), Paid: decimal.NewFromInt(40)},
			days:      15,
			condition: ConditionDue,
		},
		{
			name:      "due in a week is due soon",
			check:     Check{Date: day(2024, 3, 22), Amount: decimal.NewFromInt(10)},
			days:      7,
			condition: ConditionDue,
			dueSoon:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.paid, tt.check.IsPaid())
			assert.Equal(t, tt.overdue, tt.check.IsOverdue(now))
			assert.Equal(t, tt.days, tt.check.DaysUntilDue(now))
			assert.Equal(t, tt.condition, tt.check.ConditionAt(now))
			assert.Equal(t, tt.dueSoon, tt.check.DueSoon(now))
		})
	}
}

func TestCheckBalance(t *testing.T) {
	c := Check{Amount: decimal.NewFromInt(100), Paid: decimal.NewFromInt(30)}
	assert.True(t, c.Balance().Equal(decimal.NewFromInt(70)))
}

func TestDaysOverdue(t *testing.T) {
	c := Check{Date: day(2024, 2, 14), Amount: decimal.NewFromInt(1)}
	assert.Equal(t, 30, c.DaysOverdue(now))
}

func TestCheckValidate(t *testing.T) {
	require.ErrorIs(t, Check{Amount: decimal.NewFromInt(1)}.Validate(), ErrMissingDate)
	require.ErrorIs(t, Check{Date: now}.Validate(), ErrInvalidAmount)
	require.ErrorIs(t, Check{Date: now, Amount: decimal.NewFromInt(-1)}.Validate(), ErrInvalidAmount)
	require.NoError(t, Check{Date: now, Amount: decimal.NewFromInt(1)}.Validate())
	require.ErrorIs(t, Check{Date: now, Amount: decimal.NewFromInt(1), Paid: decimal.NewFromInt(-1)}.Validate(), ErrNegativePaid)

	long := Check{Date: now, Amount: decimal.NewFromInt(1), Observation: strings.Repeat("x", MaxObservationLen+1)}
	require.ErrorIs(t, long.Validate(), ErrObservation)
	long.Observation = "  " + strings.Repeat("x", MaxObservationLen) + "  "
	require.NoError(t, long.Validate())
}

func TestMarkPaid(t *testing.T) {
	c := Check{Date: day(2024, 3, 1), Amount: decimal.NewFromInt(250)}

	paid := c.MarkPaid(true, now)
	assert.True(t, paid.Paid.Equal(decimal.NewFromInt(250)))
	require.NotNil(t, paid.PaymentDate)
	assert.Equal(t, ConditionPaid, paid.ConditionAt(now))

	unpaid := paid.MarkPaid(false, now)
	assert.True(t, unpaid.Paid.IsZero())
	assert.Nil(t, unpaid.PaymentDate)
	assert.Nil(t, c.PaymentDate, "original must not change")
}

func TestWithField(t *testing.T) {
	c := Check{Date: day(2024, 3, 1), Amount: decimal.NewFromInt(100)}

	edited, err := c.WithField(FieldAmount, "50", time.UTC)
	require.NoError(t, err)
	assert.True(t, edited.Balance().Equal(decimal.NewFromInt(50)))
	assert.Equal(t, ConditionOverdue, edited.ConditionAt(now))

	_, err = c.WithField(FieldAmount, "0", time.UTC)
	require.ErrorIs(t, err, ErrValidation)

	edited, err = c.WithField(FieldDate, "2024-04-02", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2024-04-02", edited.Text(FieldDate))

	edited, err = c.WithField(FieldBank, "  Galicia ", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "Galicia", edited.Bank)

	_, err = c.WithField(Field("COLOR"), "x", time.UTC)
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestParseField(t *testing.T) {
	f, err := ParseField("N° CHEQUE")
	require.NoError(t, err)
	assert.Equal(t, FieldNumber, f)

	_, err = ParseField("nope")
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2024-02-10", "10/02/2024", "2024-02-10T00:00:00Z", "2024-02-10T03:00:00.000Z"} {
		t.Run(in, func(t *testing.T) {
			got, err := ParseDate(in, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, "2024-02-10", ISODate(got))
		})
	}
	_, err := ParseDate("", time.UTC)
	require.ErrorIs(t, err, ErrMissingDate)
	_, err = ParseDate("yesterday", time.UTC)
	require.Error(t, err)
}

func TestParseDateUsesLocalDay(t *testing.T) {
	art := time.FixedZone("ART", -3*60*60)
	today := time.Date(2024, 2, 15, 10, 0, 0, 0, art)

	got, err := ParseDate("2024-02-15T03:00:00.000Z", art)
	require.NoError(t, err)
	assert.Equal(t, art, got.Location())
	assert.Equal(t, "2024-02-15", ISODate(got))

	c := Check{Date: got, Amount: decimal.NewFromInt(100)}
	assert.False(t, c.IsOverdue(today), "due today is not overdue")
	assert.Equal(t, 0, c.DaysUntilDue(today))
	assert.Equal(t, ConditionDue, c.ConditionAt(today))

	got, err = ParseDate("2024-02-15T02:30:00Z", art)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-14", ISODate(got))
	assert.Equal(t, "2024-02", MonthKey(got))

	got, err = ParseDate("2024-01-01T01:00:00Z", art)
	require.NoError(t, err)
	assert.Equal(t, 2023, got.Year())
	assert.Equal(t, time.December, got.Month())
}

func TestLabels(t *testing.T) {
	d := day(2024, 1, 5)
	assert.Equal(t, "Ene 2024", MonthLabel(d))
	assert.Equal(t, "5/1", ShortDayLabel(d))
	assert.Equal(t, "05/01/2024", FormatDay(d))
	assert.Equal(t, "2023-11", MonthKey(AddMonths(d, -2)))
	assert.Equal(t, "2024-05", MonthKey(AddMonths(d, 4)))
}
