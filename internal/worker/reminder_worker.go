// Package worker runs the reminder digest off check events and on a timer.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cheques/internal/amqp"
	"cheques/internal/log"
	"cheques/internal/reminder"
	"cheques/internal/sheets"
)

// DigestPublisher delivers an encoded digest.
type DigestPublisher interface {
	PublishDigest(ctx context.Context, body []byte) error
}

// Invalidator drops a cached snapshot so the next fetch is fresh.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// ReminderWorker refetches the checks and publishes a reminder digest
// whenever a check changes, and periodically in between.
type ReminderWorker struct {
	source      sheets.Source
	publisher   DigestPublisher
	invalidator Invalidator
	window      int
	clock       func() time.Time
	logger      *log.Logger

	mu   sync.Mutex
	last reminder.Digest
	runs int
}

type Options struct {
	Publisher   DigestPublisher
	Invalidator Invalidator
	WindowDays  int
	Clock       func() time.Time
	Logger      *log.Logger
}

func NewReminderWorker(source sheets.Source, opts Options) *ReminderWorker {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &ReminderWorker{
		source:      source,
		publisher:   opts.Publisher,
		invalidator: opts.Invalidator,
		window:      opts.WindowDays,
		clock:       opts.Clock,
		logger:      opts.Logger.WithComponent(log.ComponentReminder),
	}
}

// HandleEvent processes a single check event from AMQP
func (w *ReminderWorker) HandleEvent(ctx context.Context, ev *amqp.CheckEvent) error {
	w.logger.InfoContext(ctx, "Processing check event",
		log.FieldEventID, ev.EventID,
		log.FieldAction, ev.Action)

	if w.invalidator != nil {
		if err := w.invalidator.Invalidate(ctx); err != nil {
			w.logger.WarnContext(ctx, "snapshot invalidation failed", log.FieldError, err.Error())
		}
	}
	_, err := w.Run(ctx)
	return err
}

// Run builds and publishes one digest.
func (w *ReminderWorker) Run(ctx context.Context) (reminder.Digest, error) {
	records, err := w.source.Fetch(ctx)
	if err != nil {
		return reminder.Digest{}, fmt.Errorf("fetch checks: %w", err)
	}
	d := reminder.Build(records, w.clock(), w.window)

	w.mu.Lock()
	w.last = d
	w.runs++
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Reminder digest built",
		log.FieldRecords, len(records),
		"overdue", len(d.Overdue),
		"due_soon", len(d.DueSoon),
		"overdue_total", d.OverdueTotal.String(),
		"due_soon_total", d.DueSoonTotal.String())
	if !d.Empty() {
		w.logger.DebugContext(ctx, d.Text())
	}

	if w.publisher == nil {
		return d, nil
	}
	body, err := d.JSON()
	if err != nil {
		return d, fmt.Errorf("encode digest: %w", err)
	}
	if err := w.publisher.PublishDigest(ctx, body); err != nil {
		return d, fmt.Errorf("publish digest: %w", err)
	}
	return d, nil
}

// Last returns the most recent digest and how many have been built.
func (w *ReminderWorker) Last() (reminder.Digest, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.runs
}

// RunEvery runs immediately and then on every tick until ctx ends. Failed
// runs are logged and retried on the next tick.
func (w *ReminderWorker) RunEvery(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.Run(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "Reminder run failed", log.FieldError, err.Error())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
