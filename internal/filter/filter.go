// Package filter implements the dashboard filter set and the predicate
// engine that narrows a check list by it.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cheques/internal/core"
)

// Key is a filter dimension. The values double as URL query keys.
type Key string

const (
	Year        Key = "AÑO"
	MonthNumber Key = "MES_NUMERO"
	YearMonth   Key = "MES"
	ExactDate   Key = "FECHA"
	Bank        Key = "BANCO"
	Category    Key = "CATEGORIA"
	Group       Key = "GRUPO DE GASTO"
	Search      Key = "BUSQUEDA"
	UnpaidOnly  Key = "NO_PAGADOS"
	OverdueOnly Key = "VENCIDOS"
	DueIn15Days Key = "VENCIMIENTO_15_DIAS"
)

// Keys in canonical order.
var Keys = []Key{
	Year, MonthNumber, YearMonth, ExactDate, Bank, Category, Group,
	Search, UnpaidOnly, OverdueOnly, DueIn15Days,
}

// DueWindowDays is the horizon of the DueIn15Days filter.
const DueWindowDays = 15

var ErrUnknownKey = errors.New("unknown filter key")

// ParseKey resolves a filter key.
func ParseKey(s string) (Key, error) {
	k := Key(s)
	for _, known := range Keys {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, s)
}

// IsBool reports whether the key carries a boolean flag.
func (k Key) IsBool() bool {
	switch k {
	case UnpaidOnly, OverdueOnly, DueIn15Days:
		return true
	default:
		return false
	}
}

func (k Key) String() string { return string(k) }

// Set is an immutable collection of active filters. Methods that change it
// return a new Set. Empty and false values are never stored, so a key's
// absence means no constraint on that dimension.
type Set struct {
	values map[Key]string
}

// New builds a Set from raw pairs, dropping cleared values.
func New(pairs map[Key]string) Set {
	s := Set{}
	for k, v := range pairs {
		s = s.With(k, v)
	}
	return s
}

func (s Set) clone() map[Key]string {
	out := make(map[Key]string, len(s.values)+1)
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func normalize(k Key, v string) (string, bool) {
	v = strings.TrimSpace(v)
	if k.IsBool() {
		b, err := strconv.ParseBool(v)
		if err != nil || !b {
			return "", false
		}
		return "true", true
	}
	if v == "" {
		return "", false
	}
	return v, true
}

// With sets k to v. A cleared value removes k.
func (s Set) With(k Key, v string) Set {
	out := s.clone()
	if nv, ok := normalize(k, v); ok {
		out[k] = nv
	} else {
		delete(out, k)
	}
	return Set{values: out}
}

// WithBool sets or clears a boolean flag.
func (s Set) WithBool(k Key, on bool) Set {
	return s.With(k, strconv.FormatBool(on))
}

// Without removes k.
func (s Set) Without(k Key) Set {
	if _, ok := s.values[k]; !ok {
		return s
	}
	out := s.clone()
	delete(out, k)
	return Set{values: out}
}

// Toggle clears k when it already holds v, otherwise sets it. Chart clicks
// use this.
func (s Set) Toggle(k Key, v string) Set {
	if cur, ok := s.values[k]; ok && cur == v {
		return s.Without(k)
	}
	return s.With(k, v)
}

// Clear returns the empty set.
func (Set) Clear() Set { return Set{} }

// Get returns the value for k.
func (s Set) Get(k Key) (string, bool) {
	v, ok := s.values[k]
	return v, ok
}

// Has reports whether k is active.
func (s Set) Has(k Key) bool {
	_, ok := s.values[k]
	return ok
}

// Len is the number of active filters.
func (s Set) Len() int { return len(s.values) }

// IsEmpty reports whether no filter is active.
func (s Set) IsEmpty() bool { return len(s.values) == 0 }

// Active returns the active keys in canonical order.
func (s Set) Active() []Key {
	out := make([]Key, 0, len(s.values))
	for _, k := range Keys {
		if _, ok := s.values[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Map returns a copy keyed by the string form of each key.
func (s Set) Map() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[string(k)] = v
	}
	return out
}

// Equal compares two sets.
func (s Set) Equal(o Set) bool {
	if len(s.values) != len(o.values) {
		return false
	}
	for k, v := range s.values {
		if o.values[k] != v {
			return false
		}
	}
	return true
}

// Apply returns the records passing every active filter. With no active
// filter the input slice itself is returned.
func Apply(records []core.Check, s Set, now time.Time) []core.Check {
	if s.IsEmpty() {
		return records
	}
	keys := s.Active()
	out := make([]core.Check, 0, len(records))
	for _, c := range records {
		if matchAll(c, s, keys, now) {
			out = append(out, c)
		}
	}
	return out
}

// Match reports whether c passes every active filter.
func Match(c core.Check, s Set, now time.Time) bool {
	return matchAll(c, s, s.Active(), now)
}

func matchAll(c core.Check, s Set, keys []Key, now time.Time) bool {
	for _, k := range keys {
		if !match(c, k, s.values[k], now) {
			return false
		}
	}
	return true
}

func match(c core.Check, k Key, v string, now time.Time) bool {
	switch k {
	case ExactDate:
		return core.ISODate(c.Date) == v
	case YearMonth:
		return core.MonthKey(c.Date) == v
	case Year:
		return strconv.Itoa(c.Date.Year()) == v
	case MonthNumber:
		return strconv.Itoa(int(c.Date.Month())) == v
	case OverdueOnly:
		return c.IsOverdue(now)
	case UnpaidOnly:
		return !c.Paid.IsPositive()
	case DueIn15Days:
		days := c.DaysUntilDue(now)
		return c.HasBalance() && days >= 0 && days <= DueWindowDays
	case Search:
		term := strings.ToLower(v)
		return strings.Contains(strings.ToLower(c.Number), term) ||
			strings.Contains(strings.ToLower(c.Observation), term)
	case Bank:
		return c.Bank == v
	case Category:
		return c.Category == v
	case Group:
		return c.Group == v
	default:
		return true
	}
}
