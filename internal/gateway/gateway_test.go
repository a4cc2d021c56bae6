package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cheques/internal/amqp"
	"cheques/internal/core"
	"cheques/internal/dashboard"
	"cheques/internal/sheets"
	"cheques/internal/sheets/memory"
	"cheques/internal/table"
)

var now = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seed() []core.Check {
	return []core.Check{
		{Date: day(2024, 3, 1), Amount: decimal.NewFromInt(100), Bank: "Galicia", Number: "A-1"},
		{Date: day(2024, 3, 20), Amount: decimal.NewFromInt(250), Bank: "Macro", Number: "A-2"},
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.CheckEvent
	err    error
}

func (p *fakePublisher) PublishEvent(_ context.Context, ev *amqp.CheckEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) Invalidate(context.Context) error {
	f.calls++
	return nil
}

type failingMutator struct {
	resp sheets.Response
	err  error
}

func (m failingMutator) Submit(context.Context, sheets.Request) (sheets.Response, error) {
	return m.resp, m.err
}

type fixture struct {
	gw      *Gateway
	backend *memory.Store
	pub     *fakePublisher
	inv     *fakeInvalidator
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	backend := memory.New(seed(), time.UTC)
	backend.SetClock(func() time.Time { return now })
	pub := &fakePublisher{}
	inv := &fakeInvalidator{}
	store := dashboard.NewStore(dashboard.Options{Clock: func() time.Time { return now }, Location: time.UTC})
	gw := New(store, backend, backend, Options{
		Publisher:   pub,
		Invalidator: inv,
		Clock:       func() time.Time { return now },
		Location:    time.UTC,
	})
	_, err := gw.Load(context.Background())
	require.NoError(t, err)
	return fixture{gw: gw, backend: backend, pub: pub, inv: inv}
}

type errSource struct{}

func (errSource) Fetch(context.Context) ([]core.Check, error) {
	return nil, &sheets.TransportError{Op: "fetch", Status: 500}
}

func TestLoadFailure(t *testing.T) {
	store := dashboard.NewStore(dashboard.Options{})
	gw := New(store, errSource{}, failingMutator{}, Options{})
	_, err := gw.Load(context.Background())
	require.Error(t, err)
	assert.True(t, sheets.IsTransport(err))
	assert.Equal(t, 0, store.Len())
}

func TestSubmitAddRefetchesAndHighlightsNewRow(t *testing.T) {
	f := newFixture(t)
	var seen []dashboard.View
	f.gw.Store().Subscribe(func(v dashboard.View) { seen = append(seen, v) })

	v, err := f.gw.Submit(context.Background(), sheets.AddRequest(core.Check{
		Date: day(2024, 4, 1), Amount: decimal.NewFromInt(500), Bank: "BBVA",
	}))
	require.NoError(t, err)

	assert.Equal(t, 3, f.gw.Store().Len())
	assert.Equal(t, 2, v.Highlight)
	require.Len(t, seen, 1)
	assert.Equal(t, 1, f.inv.calls)
	require.Len(t, f.pub.events, 1)
	assert.Equal(t, "addCheck", f.pub.events[0].Action)
	assert.Nil(t, f.pub.events[0].CheckID)

	assert.Equal(t, table.NoHighlight, f.gw.Store().View().Highlight, "highlight lasts one render")
}

func TestSubmitEditHighlightsEditedRow(t *testing.T) {
	f := newFixture(t)
	c, err := f.gw.Store().Get(1)
	require.NoError(t, err)
	c.Bank = "Nación"

	v, err := f.gw.Submit(context.Background(), sheets.EditRequest(c))
	require.NoError(t, err)
	assert.Equal(t, 1, v.Highlight)

	got, err := f.gw.Store().Get(1)
	require.NoError(t, err)
	assert.Equal(t, "Nación", got.Bank)
}

func TestSubmitDeleteReindexes(t *testing.T) {
	f := newFixture(t)
	_, err := f.gw.Submit(context.Background(), sheets.DeleteRequest(0))
	require.NoError(t, err)

	records := f.gw.Store().Records()
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].ID)
	assert.Equal(t, "A-2", records[0].Number)
}

func TestSubmitPaymentPatchesWithoutRefetch(t *testing.T) {
	f := newFixture(t)
	_, err := f.gw.Submit(context.Background(), sheets.PaymentRequest(1, true))
	require.NoError(t, err)

	got, err := f.gw.Store().Get(1)
	require.NoError(t, err)
	assert.True(t, got.Paid.Equal(decimal.NewFromInt(250)))
	require.NotNil(t, got.PaymentDate)
	assert.True(t, got.PaymentDate.Equal(now))
	assert.Equal(t, 1, f.inv.calls, "the cached snapshot is dropped")
	assert.Equal(t, table.NoHighlight, f.gw.Store().View().Highlight)

	_, err = f.gw.Submit(context.Background(), sheets.PaymentRequest(1, false))
	require.NoError(t, err)
	got, _ = f.gw.Store().Get(1)
	assert.True(t, got.Paid.IsZero())
	assert.Nil(t, got.PaymentDate)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gw.Submit(ctx, sheets.AddRequest(core.Check{Date: day(2024, 4, 1)}))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.gw.Submit(ctx, sheets.Request{Action: sheets.ActionAdd, Fields: map[core.Field]string{core.FieldAmount: "10"}})
	assert.ErrorIs(t, err, core.ErrMissingDate)

	_, err = f.gw.Submit(ctx, sheets.DeleteRequest(9))
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.gw.Submit(ctx, sheets.Request{Action: "archiveCheck"})
	assert.ErrorIs(t, err, sheets.ErrInvalidRequest)

	assert.Equal(t, 0, f.backend.Mutations(), "nothing reaches the backend")
	assert.Empty(t, f.pub.events)
}

func TestSubmitFailureLeavesStoreUntouched(t *testing.T) {
	tests := []struct {
		name    string
		mutator failingMutator
		check   func(t *testing.T, err error)
	}{
		{
			name:    "transport",
			mutator: failingMutator{err: &sheets.TransportError{Op: "submit", Status: 502}},
			check:   func(t *testing.T, err error) { assert.True(t, sheets.IsTransport(err)) },
		},
		{
			name:    "application",
			mutator: failingMutator{resp: sheets.Response{Success: false, Message: "Hoja bloqueada"}},
			check: func(t *testing.T, err error) {
				assert.True(t, sheets.IsApplication(err))
				assert.Contains(t, err.Error(), "Hoja bloqueada")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := memory.New(seed(), time.UTC)
			store := dashboard.NewStore(dashboard.Options{Clock: func() time.Time { return now }, Location: time.UTC})
			pub := &fakePublisher{}
			gw := New(store, backend, tt.mutator, Options{Publisher: pub, Location: time.UTC})
			_, err := gw.Load(context.Background())
			require.NoError(t, err)
			rev := store.Revision()

			_, err = gw.Submit(context.Background(), sheets.PaymentRequest(0, true))
			require.Error(t, err)
			tt.check(t, err)

			got, _ := store.Get(0)
			assert.True(t, got.Paid.IsZero())
			assert.Equal(t, rev, store.Revision())
			assert.Empty(t, pub.events)
		})
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	_, err := f.gw.Submit(context.Background(), sheets.PaymentRequest(0, true))
	require.NoError(t, err)
}

func TestEditField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.gw.EditField(ctx, 0, core.FieldObservation, "  transferido ")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Highlight)
	got, _ := f.gw.Store().Get(0)
	assert.Equal(t, "transferido", got.Observation)
	assert.Equal(t, 1, f.backend.Mutations())

	_, err = f.gw.EditField(ctx, 0, core.FieldAmount, "100.00")
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.Mutations(), "unchanged value is a no-op")

	_, err = f.gw.EditField(ctx, 0, core.FieldAmount, "0")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.gw.EditField(ctx, 5, core.FieldBank, "x")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// slowSource holds its first fetch until release is closed and answers
// later ones straight from inner.
type slowSource struct {
	inner   sheets.Source
	started chan struct{}
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	fetches int
}

func newSlowSource(inner sheets.Source) *slowSource {
	return &slowSource{inner: inner, started: make(chan struct{}), release: make(chan struct{})}
}

func (s *slowSource) Fetch(ctx context.Context) ([]core.Check, error) {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()

	first := false
	s.once.Do(func() { first = true })
	if !first {
		return s.inner.Fetch(ctx)
	}
	// the held fetch reads the remote before anything else lands
	rows, err := s.inner.Fetch(ctx)
	close(s.started)
	<-s.release
	return rows, err
}

func (s *slowSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func TestReloadOlderThanPatchIsDiscarded(t *testing.T) {
	store := dashboard.NewStore(dashboard.Options{Clock: func() time.Time { return now }, Location: time.UTC})
	store.ReplaceAll(seed())

	backend := memory.New(seed(), time.UTC)
	src := newSlowSource(backend)
	gw := New(store, src, backend, Options{Clock: func() time.Time { return now }, Location: time.UTC})

	done := make(chan error, 1)
	go func() {
		_, err := gw.Reload(context.Background())
		done <- err
	}()
	<-src.started

	_, err := gw.Submit(context.Background(), sheets.PaymentRequest(0, true))
	require.NoError(t, err)
	close(src.release)
	require.NoError(t, <-done)

	got, _ := store.Get(0)
	assert.True(t, got.Paid.Equal(decimal.NewFromInt(100)), "stale refetch must not undo the patch")
	assert.Equal(t, 2, src.count())
}

func TestSupersededRefetchStillBringsInAdd(t *testing.T) {
	store := dashboard.NewStore(dashboard.Options{Clock: func() time.Time { return now }, Location: time.UTC})
	store.ReplaceAll(seed())

	backend := memory.New(seed(), time.UTC)
	backend.SetClock(func() time.Time { return now })
	src := newSlowSource(backend)
	gw := New(store, src, backend, Options{Clock: func() time.Time { return now }, Location: time.UTC})

	type result struct {
		v   dashboard.View
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := gw.Submit(context.Background(), sheets.AddRequest(core.Check{
			Date: day(2024, 4, 1), Amount: decimal.NewFromInt(500), Bank: "BBVA",
		}))
		done <- result{v, err}
	}()
	<-src.started

	_, err := gw.Submit(context.Background(), sheets.PaymentRequest(0, true))
	require.NoError(t, err)
	close(src.release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 3, store.Len(), "the added check is loaded")
	assert.Equal(t, 3, res.v.Page.Total)
	assert.Equal(t, 2, res.v.Highlight)

	got, _ := store.Get(0)
	assert.True(t, got.Paid.Equal(decimal.NewFromInt(100)), "payment survives the refetch")
	assert.Equal(t, 2, src.count())
}

// flakySource succeeds until broken is set.
type flakySource struct {
	inner  sheets.Source
	broken bool
}

func (s *flakySource) Fetch(ctx context.Context) ([]core.Check, error) {
	if s.broken {
		return nil, &sheets.TransportError{Op: "fetch", Status: 503}
	}
	return s.inner.Fetch(ctx)
}

func TestSubmitRefreshFailureKeepsMutation(t *testing.T) {
	backend := memory.New(seed(), time.UTC)
	src := &flakySource{inner: backend}
	store := dashboard.NewStore(dashboard.Options{Clock: func() time.Time { return now }, Location: time.UTC})
	gw := New(store, src, backend, Options{Clock: func() time.Time { return now }, Location: time.UTC})
	_, err := gw.Load(context.Background())
	require.NoError(t, err)

	src.broken = true
	v, err := gw.Submit(context.Background(), sheets.DeleteRequest(0))
	require.ErrorIs(t, err, ErrRefresh)
	assert.True(t, sheets.IsTransport(err))
	assert.Equal(t, 2, len(v.Filtered), "view is the unrefreshed one")
	assert.Equal(t, 1, backend.Mutations())
}
