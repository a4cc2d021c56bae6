// Package dashboard holds the session state of the check dashboard and
// derives every view from it. All state changes go through Store, which
// recomputes the view and notifies subscribers after each write.
package dashboard

import (
	"time"

	"cheques/internal/analytics"
	"cheques/internal/core"
	"cheques/internal/filter"
	"cheques/internal/table"
)

// View is everything a renderer needs for one frame.
type View struct {
	Revision   uint64                `json:"revision"`
	Filters    map[string]string     `json:"filters"`
	Query      string                `json:"query"`
	KPIs       analytics.KPIs        `json:"kpis"`
	Comparison *analytics.Comparison `json:"comparison,omitempty"`
	Charts     analytics.Charts      `json:"charts"`
	Drill      analytics.DrillDown   `json:"drill"`
	Sort       table.SortConfig      `json:"sort"`
	Page       table.Page            `json:"pagination"`
	Rows       []table.Row           `json:"rows"`
	Summary    table.Summary         `json:"summary"`
	Options    filter.Options        `json:"options"`
	Narrowed   filter.Options        `json:"narrowedOptions"`
	Highlight  int                   `json:"highlight"`

	// Filtered is the whole filtered and sorted list, the export order.
	Filtered []core.Check `json:"-"`
}

// Input is the state a View is computed from.
type Input struct {
	Records   []core.Check
	Filters   filter.Set
	Sort      table.SortConfig
	Page      int
	Drill     analytics.DrillDown
	Highlight int
	Revision  uint64
	Now       time.Time
}

// Compute derives a View. It never modifies in.Records.
func Compute(in Input) View {
	filtered := filter.Apply(in.Records, in.Filters, in.Now)
	sorted := table.Sort(filtered, in.Sort, in.Now)
	page := table.Paginate(sorted, in.Page, table.PageSize)
	kpis := analytics.ComputeKPIs(filtered, in.Now)

	return View{
		Revision:   in.Revision,
		Filters:    in.Filters.Map(),
		Query:      filter.QueryString(in.Filters),
		KPIs:       kpis,
		Comparison: analytics.Compare(kpis, in.Records, in.Filters, in.Now),
		Charts:     analytics.BuildCharts(filtered, in.Drill, in.Now),
		Drill:      in.Drill,
		Sort:       in.Sort,
		Page:       page,
		Rows:       table.Rows(page.Items, in.Now, in.Highlight),
		Summary:    table.Summarize(sorted, page),
		Options:    filter.OptionsFor(in.Records),
		Narrowed:   filter.OptionsFor(filtered),
		Highlight:  in.Highlight,
		Filtered:   sorted,
	}
}
