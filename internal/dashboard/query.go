package dashboard

import (
	"net/url"
	"strconv"
	"strings"

	"cheques/internal/filter"
	"cheques/internal/table"
)

// Query parameters besides the filter keys.
const (
	ParamSort = "sort"
	ParamDir  = "dir"
	ParamPage = "page"
)

// Query is a stateless dashboard request: filters, sort and page.
type Query struct {
	Filters filter.Set
	Sort    table.SortConfig
	Page    int
}

// ParseQuery reads a Query from URL values. Missing sort falls back to
// the default and a missing or invalid page to 1.
func ParseQuery(q url.Values) Query {
	out := Query{Filters: filter.Decode(q), Sort: table.DefaultSort, Page: 1}
	if key := strings.TrimSpace(q.Get(ParamSort)); key != "" {
		out.Sort = table.SortConfig{Key: table.SortKey(key), Direction: table.Ascending}
		if table.Direction(q.Get(ParamDir)) == table.Descending {
			out.Sort.Direction = table.Descending
		}
	}
	if n, err := strconv.Atoi(q.Get(ParamPage)); err == nil && n > 0 {
		out.Page = n
	}
	return out
}

// Key is a canonical cache key for the query.
func (q Query) Key() string {
	return filter.QueryString(q.Filters) + "|" + string(q.Sort.Key) + "|" + string(q.Sort.Direction) + "|" + strconv.Itoa(q.Page)
}
