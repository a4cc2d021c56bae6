package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cheques/internal/core"
	"cheques/internal/sheets"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "cheques.db"), time.UTC, nil)
	require.NoError(t, err)
	repo.SetClock(func() time.Time { return fixedNow })
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func addCheck(t *testing.T, repo *SQLiteRepository, date, amount, bank string) {
	t.Helper()
	_, err := repo.Submit(context.Background(), sheets.Request{
		Action: sheets.ActionAdd,
		Fields: map[core.Field]string{
			core.FieldDate:   date,
			core.FieldAmount: amount,
			core.FieldBank:   bank,
		},
	})
	require.NoError(t, err)
}

func TestSubmitAddAndFetch(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	addCheck(t, repo, "2024-03-01", "1500.50", "Galicia")
	addCheck(t, repo, "2024-02-10", "200", "Macro")

	checks, err := repo.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, 0, checks[0].ID)
	assert.Equal(t, "Galicia", checks[0].Bank)
	assert.Equal(t, "1500.5", checks[0].Amount.String())
	assert.Equal(t, 1, checks[1].ID)
	assert.Nil(t, checks[1].PaymentDate)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSubmitAddRejectsInvalidCheck(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.Submit(context.Background(), sheets.Request{
		Action: sheets.ActionAdd,
		Fields: map[core.Field]string{core.FieldDate: "2024-03-01", core.FieldAmount: "0"},
	})
	require.Error(t, err)
	assert.True(t, sheets.IsApplication(err))
}

func TestSubmitEditPaymentDelete(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	addCheck(t, repo, "2024-03-01", "100", "Galicia")
	addCheck(t, repo, "2024-03-02", "200", "Macro")
	addCheck(t, repo, "2024-03-03", "300", "Nación")

	_, err := repo.Submit(ctx, sheets.FieldRequest(1, core.FieldObservation, "proveedor"))
	require.NoError(t, err)

	_, err = repo.Submit(ctx, sheets.PaymentRequest(2, true))
	require.NoError(t, err)

	checks, err := repo.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "proveedor", checks[1].Observation)
	assert.True(t, checks[2].Paid.Equal(decimal.NewFromInt(300)))
	require.NotNil(t, checks[2].PaymentDate)
	assert.True(t, checks[2].PaymentDate.Equal(fixedNow))

	_, err = repo.Submit(ctx, sheets.DeleteRequest(0))
	require.NoError(t, err)

	checks, err = repo.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, "Macro", checks[0].Bank)
	assert.Equal(t, 0, checks[0].ID)
	assert.Equal(t, 1, checks[1].ID)

	_, err = repo.Submit(ctx, sheets.PaymentRequest(1, false))
	require.NoError(t, err)
	checks, err = repo.Fetch(ctx)
	require.NoError(t, err)
	assert.True(t, checks[1].Paid.IsZero())
	assert.Nil(t, checks[1].PaymentDate)
}

func TestSubmitUnknownID(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.Submit(context.Background(), sheets.DeleteRequest(4))
	require.Error(t, err)
	assert.True(t, sheets.IsApplication(err))
}

func TestImportReplacesRows(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	addCheck(t, repo, "2024-03-01", "100", "Galicia")

	err := repo.Import(ctx, []core.Check{
		{Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(10), Bank: "BBVA"},
		{Date: time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(20), Bank: "Macro"},
	})
	require.NoError(t, err)

	checks, err := repo.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, "BBVA", checks[0].Bank)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cheques.db")
	v1, err := RunMigrations(path)
	require.NoError(t, err)
	v2, err := RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v1)
	assert.Equal(t, v1, v2)
}
