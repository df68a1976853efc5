package history

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestHandlerBalanceHistory(t *testing.T) {
	s := seed(t)
	svc := NewService(s.products, s.ledger, ServiceConfig{Clock: func() time.Time { return s.now }, Location: wib})
	r := chi.NewRouter()
	r.Route("/api/balance-history", NewHandler(slog.Default(), svc).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/balance-history?productCodes%5B%5D=P&granularity=hour&date=2024-05-08&startHour=8&endHour=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var points []Point
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Equal(t, []int{40, 60, 60}, balancesOf(points, "P"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/balance-history?granularity=week", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/balance-history?productCodes=ZZZ", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerAnomaliesEmpty(t *testing.T) {
	s := seed(t)
	svc := NewService(s.products, s.ledger, ServiceConfig{Clock: func() time.Time { return s.now }, Location: wib})
	r := chi.NewRouter()
	r.Route("/api/balance-history", NewHandler(slog.Default(), svc).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/balance-history/anomalies", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"data":[]}`, rec.Body.String())
}
