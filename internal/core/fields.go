package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field names a spreadsheet column. The values are the remote column keys.
type Field string

const (
	FieldDate        Field = "FECHA"
	FieldAmount      Field = "IMPORTE"
	FieldPaid        Field = "PAGADO"
	FieldBank        Field = "BANCO"
	FieldNumber      Field = "N° CHEQUE"
	FieldObservation Field = "OBSERVACION"
	FieldCategory    Field = "CATEGORIA"
	FieldGroup       Field = "GRUPO DE GASTO"
	FieldTalon       Field = "TALON N°"
	FieldPaymentDate Field = "FECHA DE PAGO"
)

// Fields lists every column in sheet order.
var Fields = []Field{
	FieldDate, FieldAmount, FieldPaid, FieldBank, FieldNumber,
	FieldObservation, FieldCategory, FieldGroup, FieldTalon, FieldPaymentDate,
}

// ParseField resolves a column key.
func ParseField(s string) (Field, error) {
	f := Field(strings.TrimSpace(s))
	for _, known := range Fields {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

func (f Field) String() string { return string(f) }

// Text returns the field as the sheet would display it. Dates are ISO days,
// amounts keep their decimal form and a missing payment date is empty.
func (c Check) Text(f Field) string {
	switch f {
	case FieldDate:
		return ISODate(c.Date)
	case FieldAmount:
		return c.Amount.String()
	case FieldPaid:
		return c.Paid.String()
	case FieldBank:
		return c.Bank
	case FieldNumber:
		return c.Number
	case FieldObservation:
		return c.Observation
	case FieldCategory:
		return c.Category
	case FieldGroup:
		return c.Group
	case FieldTalon:
		return c.Talon
	case FieldPaymentDate:
		if c.PaymentDate == nil {
			return ""
		}
		return ISODate(*c.PaymentDate)
	default:
		return ""
	}
}

// WithField returns a copy of c with one column replaced by a raw value.
func (c Check) WithField(f Field, value string, loc *time.Location) (Check, error) {
	value = strings.TrimSpace(value)
	switch f {
	case FieldDate:
		t, err := ParseDate(value, loc)
		if err != nil {
			return c, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		c.Date = t
	case FieldAmount:
		d, err := ParseAmount(value)
		if err != nil || !d.IsPositive() {
			return c, fmt.Errorf("%w: %v", ErrValidation, ErrInvalidAmount)
		}
		c.Amount = d
	case FieldPaid:
		if value == "" {
			c.Paid = decimal.Zero
			break
		}
		d, err := ParseAmount(value)
		if err != nil || d.IsNegative() {
			return c, fmt.Errorf("%w: invalid paid amount %q", ErrValidation, value)
		}
		c.Paid = d
	case FieldPaymentDate:
		if value == "" {
			c.PaymentDate = nil
			break
		}
		t, err := ParseDate(value, loc)
		if err != nil {
			return c, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		c.PaymentDate = &t
	case FieldBank:
		c.Bank = value
	case FieldNumber:
		c.Number = value
	case FieldObservation:
		c.Observation = value
	case FieldCategory:
		c.Category = value
	case FieldGroup:
		c.Group = value
	case FieldTalon:
		c.Talon = value
	default:
		return c, fmt.Errorf("%w: %q", ErrUnknownField, string(f))
	}
	return c, nil
}

// Values returns every column keyed by field, the shape sent to the remote
// store on add and edit.
func (c Check) Values() map[Field]string {
	out := make(map[Field]string, len(Fields))
	for _, f := range Fields {
		out[f] = c.Text(f)
	}
	return out
}
