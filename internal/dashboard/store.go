package dashboard

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"cheques/internal/analytics"
	"cheques/internal/cache"
	"cheques/internal/core"
	"cheques/internal/filter"
	"cheques/internal/log"
	"cheques/internal/table"
)

// ErrStale is returned when a write older than the last applied one is
// discarded.
var ErrStale = errors.New("stale write discarded")

// Ticket orders writes to the record set. A write carries the ticket it
// was issued when its work began; writes older than the last applied one
// are dropped.
type Ticket uint64

// Options configures a Store.
type Options struct {
	Clock       func() time.Time
	Location    *time.Location
	PreviewSize int
	PreviewTTL  time.Duration
	Logger      *log.Logger
}

// Store is the single writer of dashboard state.
type Store struct {
	mu        sync.Mutex
	clock     func() time.Time
	loc       *time.Location
	logger    *log.Logger
	records   []core.Check
	filters   filter.Set
	sort      table.SortConfig
	page      int
	drill     analytics.DrillDown
	highlight int
	revision  uint64
	issued    Ticket
	applied   Ticket

	subMu    sync.Mutex
	nextSub  int
	subs     map[int]func(View)
	previews *cache.LRUCache[View]
}

// NewStore returns an empty store.
func NewStore(opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.PreviewSize <= 0 {
		opts.PreviewSize = 64
	}
	if opts.PreviewTTL <= 0 {
		opts.PreviewTTL = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &Store{
		clock:     opts.Clock,
		loc:       opts.Location,
		logger:    opts.Logger.WithComponent(log.ComponentDashboard),
		sort:      table.DefaultSort,
		page:      1,
		drill:     analytics.TopLevel,
		highlight: table.NoHighlight,
		subs:      map[int]func(View){},
		previews:  cache.NewLRUCache[View](opts.PreviewSize, opts.PreviewTTL),
	}
}

// Previews exposes the preview cache so its expiry can be managed.
func (s *Store) Previews() *cache.LRUCache[View] { return s.previews }

// Subscribe registers fn to receive every recomputed view. The returned
// func unsubscribes.
func (s *Store) Subscribe(fn func(View)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(v View) {
	s.subMu.Lock()
	fns := make([]func(View), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (s *Store) input() Input {
	return Input{
		Records:   s.records,
		Filters:   s.filters,
		Sort:      s.sort,
		Page:      s.page,
		Drill:     s.drill,
		Highlight: s.highlight,
		Revision:  s.revision,
		Now:       s.clock(),
	}
}

// commit recomputes the view, consumes the highlight and notifies. It must
// be called with mu held and releases it.
func (s *Store) commit() View {
	v := Compute(s.input())
	s.highlight = table.NoHighlight
	s.mu.Unlock()
	s.notify(v)
	return v
}

// View computes the current view without consuming the highlight.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Compute(s.input())
}

// Ticket issues the ticket for a write that begins now.
func (s *Store) Ticket() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// admit checks t against the last applied write. Called with mu held.
func (s *Store) admit(t Ticket) error {
	if t < s.applied {
		s.logger.Debug("discarding stale write", log.FieldTicket, uint64(t), "applied", uint64(s.applied))
		return ErrStale
	}
	s.applied = t
	return nil
}

func (s *Store) nextTicket() Ticket {
	s.issued++
	return s.issued
}

// Revision is bumped on every change of the record set.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Records returns a copy of the loaded checks.
func (s *Store) Records() []core.Check {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

// Len is the number of loaded checks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Get returns the check with the given id.
func (s *Store) Get(id int) (core.Check, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *Store) get(id int) (core.Check, error) {
	if id < 0 || id >= len(s.records) || s.records[id].ID != id {
		for _, c := range s.records {
			if c.ID == id {
				return c, nil
			}
		}
		return core.Check{}, fmt.Errorf("%w: id %d", core.ErrNotFound, id)
	}
	return s.records[id], nil
}

// set replaces a check in a fresh copy of the slice, so views computed
// from the previous slice stay valid.
func (s *Store) set(c core.Check) {
	s.records = slices.Clone(s.records)
	if c.ID >= 0 && c.ID < len(s.records) && s.records[c.ID].ID == c.ID {
		s.records[c.ID] = c
		return
	}
	for i := range s.records {
		if s.records[i].ID == c.ID {
			s.records[i] = c
			return
		}
	}
}

// ReplaceAll swaps in a freshly fetched record set under a new ticket.
func (s *Store) ReplaceAll(records []core.Check) View {
	v, _ := s.ReplaceAllAt(s.Ticket(), records, table.NoHighlight)
	return v
}

// ReplaceAllAt swaps in records fetched under ticket t. Ids are reassigned
// densely from 0. highlight, unless table.NoHighlight, marks a row for the
// next render.
func (s *Store) ReplaceAllAt(t Ticket, records []core.Check, highlight int) (View, error) {
	s.mu.Lock()
	if err := s.admit(t); err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	s.records = make([]core.Check, len(records))
	for i, c := range records {
		c.ID = i
		s.records[i] = c
	}
	s.revision++
	if highlight != table.NoHighlight {
		s.highlight = highlight
	}
	s.logger.Debug("records replaced", log.NewFields().WithSnapshot(len(records), s.revision).ToSlice()...)
	return s.commit(), nil
}

// Patch applies a single-field local edit and highlights the edited row.
func (s *Store) Patch(id int, f core.Field, value string) (View, error) {
	s.mu.Lock()
	c, err := s.get(id)
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	next, err := c.WithField(f, value, s.loc)
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	if err := s.admit(s.nextTicket()); err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	s.set(next)
	s.revision++
	s.highlight = id
	return s.commit(), nil
}

// SetPaid applies the local effect of a payment toggle.
func (s *Store) SetPaid(id int, paid bool, now time.Time) (View, error) {
	s.mu.Lock()
	c, err := s.get(id)
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	if err := s.admit(s.nextTicket()); err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	s.set(c.MarkPaid(paid, now))
	s.revision++
	return s.commit(), nil
}

// SetHighlight marks a row for the next render only.
func (s *Store) SetHighlight(id int) View {
	s.mu.Lock()
	s.highlight = id
	return s.commit()
}

func (s *Store) setFilters(f filter.Set) View {
	s.filters = f
	s.page = 1
	s.drill = analytics.TopLevel
	return s.commit()
}

// Filters returns the active filter set.
func (s *Store) Filters() filter.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// SetFilter sets one filter. Like every filter change it returns to page 1
// and to the group level of the expense chart.
func (s *Store) SetFilter(k filter.Key, v string) View {
	s.mu.Lock()
	return s.setFilters(s.filters.With(k, v))
}

// ToggleFilter is a chart click on bucket value v.
func (s *Store) ToggleFilter(k filter.Key, v string) View {
	s.mu.Lock()
	return s.setFilters(s.filters.Toggle(k, v))
}

// ApplySearch routes search box input.
func (s *Store) ApplySearch(input string) View {
	s.mu.Lock()
	return s.setFilters(filter.ApplySearchInput(s.filters, input))
}

// ClearFilters removes every filter.
func (s *Store) ClearFilters() View {
	s.mu.Lock()
	return s.setFilters(s.filters.Clear())
}

// LoadQuery replaces the filters with those found in q.
func (s *Store) LoadQuery(q url.Values) View {
	s.mu.Lock()
	return s.setFilters(filter.Decode(q))
}

// SetSort is a click on a column header. The page is kept as is.
func (s *Store) SetSort(key table.SortKey) View {
	s.mu.Lock()
	s.sort = table.Toggle(s.sort, key)
	return s.commit()
}

// SetPage moves to page n. Values below 1 are treated as 1.
func (s *Store) SetPage(n int) View {
	s.mu.Lock()
	if n < 1 {
		n = 1
	}
	s.page = n
	return s.commit()
}

// DrillInto shows the categories of one expense group.
func (s *Store) DrillInto(group string) View {
	s.mu.Lock()
	s.drill = s.drill.Into(group)
	return s.commit()
}

// DrillBack returns to the group level.
func (s *Store) DrillBack() View {
	s.mu.Lock()
	s.drill = s.drill.Back()
	return s.commit()
}

// SelectBreakdown resolves a click on bar i of the expense chart.
func (s *Store) SelectBreakdown(i int) View {
	s.mu.Lock()
	filtered := filter.Apply(s.records, s.filters, s.clock())
	ch := analytics.ExpenseBreakdown(filtered, s.drill)
	drill, next := s.drill.Select(ch, s.filters, i)
	if !next.Equal(s.filters) {
		return s.setFilters(next)
	}
	s.drill = drill
	return s.commit()
}

// Preview computes the view for q against the current records without
// touching the session. Results are cached per revision and query.
func (s *Store) Preview(q Query) View {
	s.mu.Lock()
	in := Input{
		Records:   s.records,
		Filters:   q.Filters,
		Sort:      q.Sort,
		Page:      q.Page,
		Drill:     analytics.TopLevel,
		Highlight: table.NoHighlight,
		Revision:  s.revision,
		Now:       s.clock(),
	}
	s.mu.Unlock()

	key := strconv.FormatUint(in.Revision, 10) + "|" + q.Key()
	if v, ok := s.previews.Get(key); ok {
		return v
	}
	v := Compute(in)
	s.previews.Set(key, v)
	return v
}
