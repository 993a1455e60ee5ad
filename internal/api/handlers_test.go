package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/database"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/poller"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/realtime"
)

type noopProvider struct{}

func (noopProvider) FetchQuotes(ctx context.Context, symbols []string) map[string]models.Quote {
	return nil
}

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db := database.NewFromConn(conn)
	watcher := poller.New(db, noopProvider{}, poller.Options{})
	return NewHandler(db, watcher, realtime.NewHub(), nil, nil), mock
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetDashboard_EmptyBoard(t *testing.T) {
	handler, _ := newTestHandler(t)
	router := SetupRoutes(handler)

	rec := doRequest(router, "GET", "/api/v1/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view poller.DashboardView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Empty(t, view.Stocks)
	assert.False(t, view.PrivacyMode)
}

func TestAddStock_RequiresSymbol(t *testing.T) {
	handler, _ := newTestHandler(t)
	router := SetupRoutes(handler)

	rec := doRequest(router, "POST", "/api/v1/stocks", `{"name":"nameless"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, "POST", "/api/v1/stocks", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddTransaction_RejectsInvalidEntries(t *testing.T) {
	handler, _ := newTestHandler(t)
	router := SetupRoutes(handler)

	rec := doRequest(router, "POST", "/api/v1/stocks/AAPL/transactions",
		`{"quantity":"0","price":"10"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "non-zero")

	rec = doRequest(router, "POST", "/api/v1/stocks/AAPL/transactions",
		`{"quantity":"10","price":"-5"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "positive")
}

func TestAddTransaction_RejectsOversell(t *testing.T) {
	handler, mock := newTestHandler(t)
	router := SetupRoutes(handler)

	mock.ExpectQuery(`SELECT id, executed_at, quantity, price, total_amount`).
		WithArgs("AAPL").
		WillReturnRows(sqlmock.NewRows([]string{"id", "executed_at", "quantity", "price", "total_amount"}).
			AddRow("tx-1", "2026-01-05 10:00:00", "5", "100", nil))

	rec := doRequest(router, "POST", "/api/v1/stocks/AAPL/transactions",
		`{"quantity":"-6","price":"100"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceeds held quantity")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddAlert_RejectsInvalidRule(t *testing.T) {
	handler, _ := newTestHandler(t)
	router := SetupRoutes(handler)

	rec := doRequest(router, "POST", "/api/v1/stocks/AAPL/alerts",
		`{"type":"sideways","price":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, "POST", "/api/v1/stocks/AAPL/alerts",
		`{"type":"up","price":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSnapshot_ValidatesDate(t *testing.T) {
	handler, _ := newTestHandler(t)
	router := SetupRoutes(handler)

	rec := doRequest(router, "GET", "/api/v1/snapshots/march-2nd", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSnapshot_MissingDateIs404(t *testing.T) {
	handler, mock := newTestHandler(t)
	router := SetupRoutes(handler)

	mock.ExpectQuery(`SELECT payload FROM daily_snapshots`).
		WithArgs("2026-03-02").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	rec := doRequest(router, "GET", "/api/v1/snapshots/2026-03-02", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSnapshots(t *testing.T) {
	handler, mock := newTestHandler(t)
	router := SetupRoutes(handler)

	mock.ExpectQuery(`SELECT snapshot_date::text FROM daily_snapshots`).
		WithArgs(30).
		WillReturnRows(sqlmock.NewRows([]string{"snapshot_date"}).
			AddRow("2026-03-02").AddRow("2026-03-01"))

	rec := doRequest(router, "GET", "/api/v1/snapshots", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Dates []string `json:"dates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"2026-03-02", "2026-03-01"}, body.Dates)

	rec = doRequest(router, "GET", "/api/v1/snapshots?limit=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
