package filter

import (
	"slices"
	"strings"

	"cheques/internal/core"
)

var dueKeywords = []string{"vencen en 15 días", "vencimiento 15 dias"}

// ApplySearchInput routes free text from the search box. The due-window
// keywords switch on DueIn15Days, anything else becomes a Search term.
// Each clears the other.
func ApplySearchInput(s Set, input string) Set {
	s = s.Without(DueIn15Days).Without(Search)
	lower := strings.ToLower(input)
	for _, kw := range dueKeywords {
		if strings.Contains(lower, kw) {
			return s.WithBool(DueIn15Days, true)
		}
	}
	return s.With(Search, input)
}

// Options are the values offered by the filter dropdowns.
type Options struct {
	Years      []int    `json:"years"`
	Months     []string `json:"months"`
	Banks      []string `json:"banks"`
	Categories []string `json:"categories"`
	Groups     []string `json:"groups"`
}

// OptionsFor collects distinct years (newest first) and the sorted distinct
// non-empty banks, categories and groups.
func OptionsFor(records []core.Check) Options {
	years := map[int]struct{}{}
	banks := map[string]struct{}{}
	cats := map[string]struct{}{}
	groups := map[string]struct{}{}
	for _, c := range records {
		years[c.Date.Year()] = struct{}{}
		if c.Bank != "" {
			banks[c.Bank] = struct{}{}
		}
		if c.Category != "" {
			cats[c.Category] = struct{}{}
		}
		if c.Group != "" {
			groups[c.Group] = struct{}{}
		}
	}

	opts := Options{
		Months:     core.MonthAbbrev[:],
		Banks:      sortedKeys(banks),
		Categories: sortedKeys(cats),
		Groups:     sortedKeys(groups),
	}
	for y := range years {
		opts.Years = append(opts.Years, y)
	}
	slices.Sort(opts.Years)
	slices.Reverse(opts.Years)
	return opts
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
