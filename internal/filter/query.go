package filter

import (
	"net/url"
	"strings"
)

// Encode mirrors the set into URL query values. Boolean flags serialize as
// the literal "true".
func Encode(s Set) url.Values {
	q := url.Values{}
	for _, k := range s.Active() {
		q.Set(string(k), s.values[k])
	}
	return q
}

// QueryString renders the set in canonical key order, the form written to
// the page URL.
func QueryString(s Set) string {
	parts := make([]string, 0, s.Len())
	for _, k := range s.Active() {
		parts = append(parts, url.QueryEscape(string(k))+"="+url.QueryEscape(s.values[k]))
	}
	return strings.Join(parts, "&")
}

// Decode rebuilds a set from URL query values. Unknown keys are ignored and
// cleared values ("", "false") are dropped.
func Decode(q url.Values) Set {
	s := Set{}
	for _, k := range Keys {
		if v := q.Get(string(k)); v != "" {
			s = s.With(k, v)
		}
	}
	return s
}

// HasAny reports whether q carries at least one recognized filter key.
func HasAny(q url.Values) bool {
	for _, k := range Keys {
		if _, ok := q[string(k)]; ok {
			return true
		}
	}
	return false
}
