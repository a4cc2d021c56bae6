package core

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Condition labels as shown in the table and the CSV export.
const (
	ConditionPaid    Condition = "Pagado"
	ConditionOverdue Condition = "Vencido"
	ConditionDue     Condition = "A Vencer"
)

// DueSoonDays is the horizon for the due-soon row flag.
const DueSoonDays = 7

type (
	Condition string

	// Check is one issued check. ID is positional within a loaded snapshot
	// and is reassigned on every full refetch.
	Check struct {
		ID          int             `json:"id"`
		Date        time.Time       `json:"date"`
		Amount      decimal.Decimal `json:"amount"`
		Paid        decimal.Decimal `json:"paid"`
		PaymentDate *time.Time      `json:"paymentDate,omitempty"`
		Bank        string          `json:"bank,omitempty"`
		Number      string          `json:"number,omitempty"`
		Talon       string          `json:"talon,omitempty"`
		Category    string          `json:"category,omitempty"`
		Group       string          `json:"group,omitempty"`
		Observation string          `json:"observation,omitempty"`
	}
)

var (
	ErrNotFound      = errors.New("check not found")
	ErrValidation    = errors.New("validation failed")
	ErrMissingDate   = errors.New("date is required")
	ErrInvalidAmount = errors.New("amount must be a positive number")
	ErrUnknownField  = errors.New("unknown field")
	ErrNegativePaid  = errors.New("paid amount cannot be negative")
	ErrObservation   = errors.New("observation too long (max 500 characters)")
)

// MaxObservationLen bounds the trimmed observation text.
const MaxObservationLen = 500

// Tolerance absorbs rounding left over by partial payments.
var Tolerance = decimal.New(1, -2)

// Balance is the outstanding amount.
func (c Check) Balance() decimal.Decimal {
	return c.Amount.Sub(c.Paid)
}

// IsPaid reports whether the balance is within tolerance of zero.
func (c Check) IsPaid() bool {
	return c.Balance().LessThanOrEqual(Tolerance)
}

// HasBalance is the complement of IsPaid.
func (c Check) HasBalance() bool {
	return c.Balance().GreaterThan(Tolerance)
}

// IsOverdue reports an unpaid check whose date is before today.
func (c Check) IsOverdue(now time.Time) bool {
	return c.HasBalance() && StartOfDay(c.Date).Before(StartOfDay(now))
}

// DaysUntilDue is ceil((date - today) / 1 day), negative once the check is past due.
func (c Check) DaysUntilDue(now time.Time) int {
	d := c.Date.Sub(StartOfDay(now))
	return int(math.Ceil(d.Hours() / 24))
}

// DaysOverdue is floor((today - date) / 1 day).
func (c Check) DaysOverdue(now time.Time) int {
	d := StartOfDay(now).Sub(c.Date)
	return int(math.Floor(d.Hours() / 24))
}

// ConditionAt derives the status label for the given day.
func (c Check) ConditionAt(now time.Time) Condition {
	switch {
	case c.IsPaid():
		return ConditionPaid
	case c.DaysUntilDue(now) < 0:
		return ConditionOverdue
	default:
		return ConditionDue
	}
}

// DueSoon flags unpaid checks due within the next week, today included.
func (c Check) DueSoon(now time.Time) bool {
	days := c.DaysUntilDue(now)
	return days >= 0 && days <= DueSoonDays && c.HasBalance()
}

// Validate applies the checks performed before a check is submitted.
func (c Check) Validate() error {
	if c.Date.IsZero() {
		return ErrMissingDate
	}
	if !c.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if c.Paid.IsNegative() {
		return ErrNegativePaid
	}
	if len(strings.TrimSpace(c.Observation)) > MaxObservationLen {
		return ErrObservation
	}
	return nil
}

// MarkPaid returns a copy with the payment fields set the way a payment
// toggle leaves them.
func (c Check) MarkPaid(paid bool, now time.Time) Check {
	if paid {
		c.Paid = c.Amount
		ts := now
		c.PaymentDate = &ts
		return c
	}
	c.Paid = decimal.Zero
	c.PaymentDate = nil
	return c
}
