// Package gateway sends check mutations to the remote sheet and brings the
// dashboard store up to date afterwards.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cheques/internal/amqp"
	"cheques/internal/core"
	"cheques/internal/dashboard"
	"cheques/internal/log"
	"cheques/internal/sheets"
	"cheques/internal/table"
)

// ErrRefresh marks a mutation that was applied remotely but whose
// follow-up refetch failed. The returned view is the unrefreshed one.
var ErrRefresh = errors.New("refresh failed")

// Publisher announces successful mutations.
type Publisher interface {
	PublishEvent(ctx context.Context, ev *amqp.CheckEvent) error
}

// Invalidator drops cached snapshots of the source.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Options struct {
	Publisher   Publisher
	Invalidator Invalidator
	Clock       func() time.Time
	Location    *time.Location
	Logger      *log.Logger
}

type Gateway struct {
	store       *dashboard.Store
	source      sheets.Source
	mutator     sheets.Mutator
	publisher   Publisher
	invalidator Invalidator
	clock       func() time.Time
	loc         *time.Location
	logger      *log.Logger
	audit       *log.StructuredLogger
}

func New(store *dashboard.Store, source sheets.Source, mutator sheets.Mutator, opts Options) *Gateway {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	logger := opts.Logger.WithComponent(log.ComponentGateway)
	return &Gateway{
		store:       store,
		source:      source,
		mutator:     mutator,
		publisher:   opts.Publisher,
		invalidator: opts.Invalidator,
		clock:       opts.Clock,
		loc:         opts.Location,
		logger:      logger,
		audit:       log.NewStructuredLogger(logger),
	}
}

// Store returns the dashboard store the gateway writes to.
func (g *Gateway) Store() *dashboard.Store { return g.store }

// Load performs the initial fetch.
func (g *Gateway) Load(ctx context.Context) (dashboard.View, error) {
	v, err := g.refetch(ctx, table.NoHighlight)
	if err != nil {
		return dashboard.View{}, fmt.Errorf("initial load: %w", err)
	}
	g.logger.InfoContext(ctx, "checks loaded", log.NewFields().WithSnapshot(g.store.Len(), v.Revision).WithOperation(log.OpLoad).ToSlice()...)
	return v, nil
}

// Reload drops any cached snapshot and refetches.
func (g *Gateway) Reload(ctx context.Context) (dashboard.View, error) {
	g.invalidate(ctx)
	v, err := g.refetch(ctx, table.NoHighlight)
	if err != nil {
		return dashboard.View{}, fmt.Errorf("reload: %w", err)
	}
	return v, nil
}

// refetchAttempts bounds how often a refetch is retried after a newer
// local write superseded it.
const refetchAttempts = 3

// refetch replaces the record set with a fresh fetch. The ticket is taken
// before fetching, so a local patch applied meanwhile wins. A superseded
// fetch is repeated with a new ticket, since it may carry a remote change
// nothing else will bring in.
func (g *Gateway) refetch(ctx context.Context, highlight int) (dashboard.View, error) {
	for attempt := 1; ; attempt++ {
		t := g.store.Ticket()
		rows, err := g.source.Fetch(ctx)
		if err != nil {
			return dashboard.View{}, err
		}
		v, err := g.store.ReplaceAllAt(t, rows, highlight)
		if !errors.Is(err, dashboard.ErrStale) {
			return v, err
		}
		if attempt == refetchAttempts {
			return dashboard.View{}, fmt.Errorf("refetch superseded %d times: %w", attempt, err)
		}
		g.logger.DebugContext(ctx, "refetch superseded, fetching again", "attempt", attempt)
	}
}

func (g *Gateway) invalidate(ctx context.Context) {
	if g.invalidator == nil {
		return
	}
	if err := g.invalidator.Invalidate(ctx); err != nil {
		g.logger.WarnContext(ctx, "snapshot invalidation failed", log.FieldError, err.Error())
	}
}

// Validate runs the checks made before anything is sent: the request shape,
// the id against the loaded rows and, for add and edit, the resulting check.
func (g *Gateway) Validate(req sheets.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	base := core.Check{}
	if req.ID != nil {
		c, err := g.store.Get(*req.ID)
		if err != nil {
			return err
		}
		base = c
	}
	if req.Action != sheets.ActionAdd && req.Action != sheets.ActionEdit {
		return nil
	}
	c, err := req.Apply(base, g.loc)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrValidation, err)
	}
	return nil
}

// Submit sends one mutation. Any success drops the cached snapshot. Add,
// edit and delete are followed by a full refetch; a payment toggle is
// patched locally instead. On failure the store is left as it was.
func (g *Gateway) Submit(ctx context.Context, req sheets.Request) (dashboard.View, error) {
	if err := g.Validate(req); err != nil {
		return dashboard.View{}, err
	}
	before := g.store.Len()

	if err := g.send(ctx, req); err != nil {
		return dashboard.View{}, err
	}

	switch req.Action {
	case sheets.ActionPayment:
		return g.store.SetPaid(*req.ID, *req.IsPaid, g.clock())
	case sheets.ActionAdd:
		return g.refresh(ctx, req.Action, before)
	case sheets.ActionEdit:
		return g.refresh(ctx, req.Action, *req.ID)
	default:
		return g.refresh(ctx, req.Action, table.NoHighlight)
	}
}

// EditField saves one inline cell edit. An unchanged value sends nothing.
func (g *Gateway) EditField(ctx context.Context, id int, f core.Field, value string) (dashboard.View, error) {
	c, err := g.store.Get(id)
	if err != nil {
		return dashboard.View{}, err
	}
	next, err := c.WithField(f, value, g.loc)
	if err != nil {
		return dashboard.View{}, err
	}
	if next.Text(f) == c.Text(f) {
		return g.store.View(), nil
	}

	if err := g.send(ctx, sheets.FieldRequest(id, f, strings.TrimSpace(value))); err != nil {
		return dashboard.View{}, err
	}
	return g.store.Patch(id, f, value)
}

func (g *Gateway) send(ctx context.Context, req sheets.Request) error {
	id, amount := -1, req.Fields[core.FieldAmount]
	if req.ID != nil {
		id = *req.ID
	}

	resp, err := g.mutator.Submit(ctx, req)
	if err == nil && !resp.Success {
		err = sheets.Reject(req.Action, resp)
	}
	g.audit.LogMutation(ctx, string(req.Action), id, amount, err)
	if err != nil {
		return err
	}

	g.invalidate(ctx)
	g.publish(ctx, req)
	return nil
}

func (g *Gateway) publish(ctx context.Context, req sheets.Request) {
	if g.publisher == nil {
		return
	}
	ev := amqp.NewCheckEvent(string(req.Action), req.ID)
	ev.Revision = g.store.Revision()
	if err := g.publisher.PublishEvent(ctx, ev); err != nil {
		g.logger.WarnContext(ctx, "check event not published",
			log.FieldEventID, ev.EventID,
			log.FieldError, err.Error())
	}
}

func (g *Gateway) refresh(ctx context.Context, action sheets.Action, highlight int) (dashboard.View, error) {
	v, err := g.refetch(ctx, highlight)
	if err != nil {
		return g.store.View(), fmt.Errorf("%w after %s: %w", ErrRefresh, action, err)
	}
	return v, nil
}
