package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cheques/internal/core"
	"cheques/internal/dashboard"
	"cheques/internal/gateway"
	"cheques/internal/sheets"
	"cheques/internal/sheets/memory"
)

var now = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func seed() []core.Check {
	return []core.Check{
		{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(100), Bank: "Galicia", Number: "A-1", Observation: `Pago "urgente"`},
		{Date: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(250), Bank: "Macro", Number: "A-2"},
	}
}

type stubMutator struct {
	resp sheets.Response
	err  error
}

func (m stubMutator) Submit(context.Context, sheets.Request) (sheets.Response, error) {
	return m.resp, m.err
}

func newTestServer(t *testing.T, mutator sheets.Mutator, opts Options) *Server {
	t.Helper()
	backend := memory.New(seed(), time.UTC)
	backend.SetClock(clock)
	if mutator == nil {
		mutator = backend
	}
	store := dashboard.NewStore(dashboard.Options{Clock: clock, Location: time.UTC})
	gw := gateway.New(store, backend, mutator, gateway.Options{Clock: clock, Location: time.UTC})
	_, err := gw.Load(context.Background())
	require.NoError(t, err)

	opts.Clock = clock
	opts.Location = time.UTC
	s, err := NewServer(":0", gw, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, nil, Options{})

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])
}

func TestReadyReportsBackendFailure(t *testing.T) {
	s := newTestServer(t, nil, Options{Ready: func(context.Context) error { return errors.New("sheet unreachable") }})
	rec := do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDashboardLoadsFiltersFromURL(t *testing.T) {
	s := newTestServer(t, nil, Options{})

	body := decode(t, do(t, s, http.MethodGet, "/api/dashboard", ""))
	assert.Len(t, body["rows"], 2)

	body = decode(t, do(t, s, http.MethodGet, "/api/dashboard?BANCO=Galicia", ""))
	assert.Len(t, body["rows"], 1)
	assert.Equal(t, map[string]any{"BANCO": "Galicia"}, body["filters"])

	// the session keeps the filter
	body = decode(t, do(t, s, http.MethodGet, "/api/dashboard", ""))
	assert.Len(t, body["rows"], 1)
	assert.Equal(t, "BANCO=Galicia", body["query"])
}

func TestPreviewDoesNotTouchSession(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	body := decode(t, do(t, s, http.MethodGet, "/api/preview?BANCO=Macro", ""))
	assert.Len(t, body["rows"], 1)
	assert.Empty(t, s.store.Filters().Map())
}

func TestFilterEndpoints(t *testing.T) {
	s := newTestServer(t, nil, Options{})

	rec := do(t, s, http.MethodPut, "/api/dashboard/filters", `{"key":"COLOR","value":"rojo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/dashboard/filters", `{"key":"VENCIDOS","value":"true"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["rows"], 1)

	rec = do(t, s, http.MethodPost, "/api/dashboard/filters/toggle", `{"key":"BANCO","value":"Galicia"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/dashboard/filters/toggle", `{"key":"BANCO","value":"Galicia"}`)
	assert.Equal(t, map[string]any{"VENCIDOS": "true"}, decode(t, rec)["filters"])

	rec = do(t, s, http.MethodDelete, "/api/dashboard/filters", "")
	assert.Len(t, decode(t, rec)["rows"], 2)

	rec = do(t, s, http.MethodPut, "/api/dashboard/filters", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSortAndPage(t *testing.T) {
	s := newTestServer(t, nil, Options{})

	rec := do(t, s, http.MethodPut, "/api/dashboard/sort", `{"key":"IMPORTE"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	sort := decode(t, rec)["sort"].(map[string]any)
	assert.Equal(t, "IMPORTE", sort["key"])
	assert.Equal(t, "ascending", sort["direction"])

	rec = do(t, s, http.MethodPut, "/api/dashboard/sort", `{"key":"COLOR"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/dashboard/page", `{"page":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode(t, rec)["pagination"].(map[string]any)
	assert.Equal(t, float64(3), page["page"])
}

func TestAddCheck(t *testing.T) {
	s := newTestServer(t, nil, Options{})

	rec := do(t, s, http.MethodPost, "/api/checks", `{"FECHA":"2024-04-01","IMPORTE":"1.500,50","BANCO":"BBVA"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, float64(2), body["highlight"])
	assert.Equal(t, 3, s.store.Len())

	c, err := s.store.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "1500.5", c.Amount.String())
}

func TestAddCheckValidation(t *testing.T) {
	s := newTestServer(t, nil, Options{})

	rec := do(t, s, http.MethodPost, "/api/checks", `{"FECHA":"2024-04-01","IMPORTE":"0"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/checks", `{"IMPORTE":"10"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 2, s.store.Len())
}

func TestEditDeleteAndPayment(t *testing.T) {
	s := newTestServer(t, nil, Options{})

	rec := do(t, s, http.MethodPut, "/api/checks/1", `{"BANCO":"Nación"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c, err := s.store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "Nación", c.Bank)
	assert.Equal(t, "250", c.Amount.String(), "other columns are kept")

	rec = do(t, s, http.MethodPut, "/api/checks/0/payment", `{"isPaid":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	c, _ = s.store.Get(0)
	assert.True(t, c.IsPaid())
	require.NotNil(t, c.PaymentDate)

	rec = do(t, s, http.MethodPut, "/api/checks/0/payment", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/checks/9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/checks/x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/checks/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.store.Len())
}

func TestEditField(t *testing.T) {
	s := newTestServer(t, nil, Options{})

	rec := do(t, s, http.MethodPatch, "/api/checks/0/fields/OBSERVACION", `{"value":"Entregado"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	c, _ := s.store.Get(0)
	assert.Equal(t, "Entregado", c.Observation)

	rec = do(t, s, http.MethodPatch, "/api/checks/0/fields/COLOR", `{"value":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPatch, "/api/checks/0/fields/IMPORTE", `{"value":"-5"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRemoteErrors(t *testing.T) {
	rejected := newTestServer(t, stubMutator{resp: sheets.Response{Success: false, Message: "Fila bloqueada"}}, Options{})
	rec := do(t, rejected, http.MethodDelete, "/api/checks/0", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Fila bloqueada", decode(t, rec)["error"])
	assert.Equal(t, 2, rejected.store.Len())

	down := newTestServer(t, stubMutator{err: &sheets.TransportError{Op: "deleteCheck", Status: 500}}, Options{})
	rec = do(t, down, http.MethodDelete, "/api/checks/0", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t, nil, Options{})

	rec := do(t, s, http.MethodGet, "/api/export.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="reporte_cheques.csv"`, rec.Header().Get("Content-Disposition"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "\ufeffFecha de Cheque,"))
	assert.Contains(t, body, `"Pago ""urgente"""`)
	assert.False(t, strings.HasSuffix(body, "\n"))

	rec = do(t, s, http.MethodGet, "/api/export.csv?BANCO=Inexistente", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExportXLSX(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	rec := do(t, s, http.MethodGet, "/api/export.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"), "xlsx is a zip archive")
}

func TestWritesAreRateLimited(t *testing.T) {
	s := newTestServer(t, nil, Options{RateLimitRPM: 1})

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/dashboard/search", `{"input":"A-1"}`).Code)
	rec := do(t, s, http.MethodPost, "/api/dashboard/search", `{"input":"A-2"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/dashboard", "").Code)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	do(t, s, http.MethodGet, "/healthz", "")
	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "checks_loaded 2")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrNotFound, http.StatusNotFound},
		{sheets.ErrInvalidRequest, http.StatusBadRequest},
		{&sheets.ApplicationError{Action: sheets.ActionAdd}, http.StatusUnprocessableEntity},
		{&sheets.TransportError{Op: "fetch"}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, _ := statusFor(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}
