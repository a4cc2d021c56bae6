// Package storage is a durable local check sheet on SQLite. Ids are
// positional, counted over rows ordered by position then id, so they
// behave like sheet row indexes.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"cheques/internal/core"
	"cheques/internal/log"
	"cheques/internal/sheets"

	_ "modernc.org/sqlite"
)

// Ensure interface conformance
var _ sheets.Backend = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db     *sql.DB
	loc    *time.Location
	now    func() time.Time
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, loc *time.Location, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer keeps position assignment consistent
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)
	logger.Debug("check schema ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{
		db:     db,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SetClock overrides the payment timestamp source.
func (r *SQLiteRepository) SetClock(now func() time.Time) { r.now = now }

const selectChecks = `SELECT id, fecha, importe, pagado, banco, numero, talon, categoria, grupo, observacion, fecha_pago
FROM checks ORDER BY position, id`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// load returns the checks with positional ids and their row ids.
func (r *SQLiteRepository) load(ctx context.Context, q queryer) ([]core.Check, []int64, error) {
	rows, err := q.QueryContext(ctx, selectChecks)
	if err != nil {
		return nil, nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	var (
		out    []core.Check
		rowIDs []int64
	)
	for rows.Next() {
		var (
			rowID                int64
			fecha, importe, paid string
			c                    core.Check
			paymentDate          sql.NullString
		)
		if err := rows.Scan(&rowID, &fecha, &importe, &paid, &c.Bank, &c.Number, &c.Talon,
			&c.Category, &c.Group, &c.Observation, &paymentDate); err != nil {
			return nil, nil, fmt.Errorf("scan check: %w", err)
		}
		if c.Date, err = core.ParseDate(fecha, r.loc); err != nil {
			return nil, nil, fmt.Errorf("check %d: %w", rowID, err)
		}
		c.Amount = decimalOrZero(importe)
		c.Paid = decimalOrZero(paid)
		if paymentDate.Valid && paymentDate.String != "" {
			if t, err := core.ParseDate(paymentDate.String, r.loc); err == nil {
				c.PaymentDate = &t
			}
		}
		c.ID = len(out)
		out = append(out, c)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate checks: %w", err)
	}
	return out, rowIDs, nil
}

func decimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Fetch implements sheets.Source
func (r *SQLiteRepository) Fetch(ctx context.Context) ([]core.Check, error) {
	checks, _, err := r.load(ctx, r.db)
	return checks, err
}

// Submit implements sheets.Mutator. Each action runs in its own
// transaction.
func (r *SQLiteRepository) Submit(ctx context.Context, req sheets.Request) (sheets.Response, error) {
	if err := req.Validate(); err != nil {
		return sheets.Response{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return sheets.Response{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.apply(ctx, tx, req); err != nil {
		return sheets.Response{Message: err.Error()}, err
	}
	if err := tx.Commit(); err != nil {
		return sheets.Response{}, fmt.Errorf("commit: %w", err)
	}

	r.logger.InfoContext(ctx, "check stored", log.FieldAction, string(req.Action))
	return sheets.Response{Success: true}, nil
}

func (r *SQLiteRepository) apply(ctx context.Context, tx *sql.Tx, req sheets.Request) error {
	checks, rowIDs, err := r.load(ctx, tx)
	if err != nil {
		return err
	}

	if req.Action == sheets.ActionAdd {
		c, err := req.Apply(core.Check{}, r.loc)
		if err == nil {
			err = c.Validate()
		}
		if err != nil {
			return &sheets.ApplicationError{Action: req.Action, Message: err.Error()}
		}
		return r.insert(ctx, tx, c)
	}

	id := *req.ID
	if id >= len(checks) {
		return &sheets.ApplicationError{Action: req.Action, Message: fmt.Sprintf("Cheque %d no encontrado", id)}
	}
	rowID := rowIDs[id]

	switch req.Action {
	case sheets.ActionEdit:
		c, err := req.Apply(checks[id], r.loc)
		if err != nil {
			return &sheets.ApplicationError{Action: req.Action, Message: err.Error()}
		}
		return r.update(ctx, tx, rowID, c)
	case sheets.ActionDelete:
		if _, err := tx.ExecContext(ctx, `DELETE FROM checks WHERE id = ?`, rowID); err != nil {
			return fmt.Errorf("delete check: %w", err)
		}
		return nil
	case sheets.ActionPayment:
		return r.update(ctx, tx, rowID, checks[id].MarkPaid(*req.IsPaid, r.now()))
	}
	return fmt.Errorf("%w: unknown action %q", sheets.ErrInvalidRequest, req.Action)
}

func (r *SQLiteRepository) insert(ctx context.Context, tx *sql.Tx, c core.Check) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO checks
		(position, fecha, importe, pagado, banco, numero, talon, categoria, grupo, observacion, fecha_pago)
		VALUES ((SELECT COALESCE(MAX(position), 0) + 1 FROM checks), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		core.ISODate(c.Date), c.Amount.String(), c.Paid.String(), c.Bank, c.Number, c.Talon,
		c.Category, c.Group, c.Observation, paymentDate(c))
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) update(ctx context.Context, tx *sql.Tx, rowID int64, c core.Check) error {
	res, err := tx.ExecContext(ctx, `UPDATE checks SET
		fecha = ?, importe = ?, pagado = ?, banco = ?, numero = ?, talon = ?,
		categoria = ?, grupo = ?, observacion = ?, fecha_pago = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		core.ISODate(c.Date), c.Amount.String(), c.Paid.String(), c.Bank, c.Number, c.Talon,
		c.Category, c.Group, c.Observation, paymentDate(c), rowID)
	if err != nil {
		return fmt.Errorf("update check: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update check %d: %w", rowID, core.ErrNotFound)
	}
	return nil
}

func paymentDate(c core.Check) sql.NullString {
	if c.PaymentDate == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: c.PaymentDate.Format(time.RFC3339), Valid: true}
}

// Import replaces the stored checks, for seeding from a sheet export.
func (r *SQLiteRepository) Import(ctx context.Context, checks []core.Check) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checks`); err != nil {
		return fmt.Errorf("clear checks: %w", err)
	}
	for _, c := range checks {
		if err := r.insert(ctx, tx, c); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.logger.InfoContext(ctx, "checks imported", log.FieldRecords, len(checks))
	return nil
}

// Count returns the number of stored checks.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checks`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}
