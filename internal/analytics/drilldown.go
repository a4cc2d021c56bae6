package analytics

import (
	"cheques/internal/core"
	"cheques/internal/filter"
)

// Placeholder labels for checks without a group or category.
const (
	NoGroup    = "Sin Grupo"
	NoCategory = "Sin Categoría"
)

// Level is the depth of the expense breakdown.
type Level string

const (
	LevelGroup    Level = "group"
	LevelCategory Level = "category"
)

// DrillDown is the state of the two-level expense chart. At the category
// level Group holds the selected group label.
type DrillDown struct {
	Level Level  `json:"level"`
	Group string `json:"group,omitempty"`
}

// TopLevel is the initial drill-down state.
var TopLevel = DrillDown{Level: LevelGroup}

// Into descends into a group.
func (d DrillDown) Into(group string) DrillDown {
	return DrillDown{Level: LevelCategory, Group: group}
}

// Back returns to the group level.
func (d DrillDown) Back() DrillDown { return TopLevel }

// IsCategory reports whether the chart shows categories.
func (d DrillDown) IsCategory() bool { return d.Level == LevelCategory }

func groupLabel(c core.Check) string {
	if c.Group == "" {
		return NoGroup
	}
	return c.Group
}

func categoryLabel(c core.Check) string {
	if c.Category == "" {
		return NoCategory
	}
	return c.Category
}

// ExpenseBreakdown sums amounts by expense group, or by category within the
// selected group, largest first. Group bars carry no filter key because
// selecting one drills in. Drilling into NoGroup selects checks with an
// empty group.
func ExpenseBreakdown(records []core.Check, d DrillDown) Chart {
	t := newTally()
	if !d.IsCategory() {
		for _, c := range records {
			l := groupLabel(c)
			t.add(l, l, c.Amount)
		}
		t.sortDesc()
		return t.chart("", "Importe por Grupo")
	}

	for _, c := range records {
		if groupLabel(c) != d.Group {
			continue
		}
		t.add(c.Category, categoryLabel(c), c.Amount)
	}
	t.sortDesc()
	return t.chart(filter.Category, "Importe por Categoría")
}

// Select resolves a click on bucket i. At the group level it drills in and
// leaves the filters alone; at the category level it toggles the category
// filter.
func (d DrillDown) Select(ch Chart, s filter.Set, i int) (DrillDown, filter.Set) {
	if i < 0 || i >= ch.Len() {
		return d, s
	}
	if !d.IsCategory() {
		return d.Into(ch.Keys[i]), s
	}
	return d, ch.Toggle(s, i)
}
