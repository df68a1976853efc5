package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/gudang/internal/shared"
)

func newTestRouter(h *Handler, actor *shared.Actor) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if actor != nil {
				req = req.WithContext(shared.ContextWithActor(req.Context(), *actor))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/transactions", h.MountRoutes)
	return r
}

func TestHandlerPostUsesAuthenticatedActor(t *testing.T) {
	f := newFixture(t, 10)
	h := NewHandler(slog.Default(), f.svc)
	router := newTestRouter(h, &shared.Actor{Name: "budi", Roles: []string{shared.RoleOfficer}})

	body := `{"productCode":"GDG-A1B-0001","type":"out","quantity":4}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var res PostResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, 6, res.NewBalance)
	require.Equal(t, "budi", res.Transaction.Actor)
}

func TestHandlerRejectsCallerSuppliedActor(t *testing.T) {
	f := newFixture(t, 10)
	h := NewHandler(slog.Default(), f.svc)
	router := newTestRouter(h, &shared.Actor{Name: "budi"})

	body := `{"productCode":"GDG-A1B-0001","type":"IN","quantity":1,"actor":"someone-else"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 10, f.stock(t))
}

func TestHandlerMapsBusinessErrors(t *testing.T) {
	f := newFixture(t, 1)
	h := NewHandler(slog.Default(), f.svc)
	router := newTestRouter(h, &shared.Actor{Name: "budi"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transactions",
		strings.NewReader(`{"productCode":"GDG-A1B-0001","type":"OUT","quantity":2}`)))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "insufficient stock")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transactions",
		strings.NewReader(`{"productCode":"GDG-A1B-0001","type":"OUT","quantity":0}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRequiresActor(t *testing.T) {
	f := newFixture(t, 1)
	h := NewHandler(slog.Default(), f.svc)
	router := newTestRouter(h, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transactions",
		strings.NewReader(`{"productCode":"GDG-A1B-0001","type":"IN","quantity":2}`)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerListNewestFirst(t *testing.T) {
	f := newFixture(t, 0)
	for _, q := range []int{1, 2} {
		_, err := f.svc.Post(context.Background(), PostInput{ProductCode: "GDG-A1B-0001", Type: TypeIn, Quantity: q, Actor: "budi"})
		require.NoError(t, err)
	}
	h := NewHandler(slog.Default(), f.svc)
	router := newTestRouter(h, &shared.Actor{Name: "budi"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Data []Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 2)
	require.Equal(t, 2, payload.Data[0].Quantity)
}

func TestHandlerUnconfirmedAppendSaysDoNotRetry(t *testing.T) {
	f := newFixture(t, 10)
	svc := NewService(f.products, landsThenFails{f.ledger}, shared.NewKeyedMutex(), nil, nil, ServiceConfig{})
	router := newTestRouter(NewHandler(slog.Default(), svc), &shared.Actor{Name: "budi"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/transactions",
		strings.NewReader(`{"productCode":"GDG-A1B-0001","type":"IN","quantity":2}`)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "do not retry")
}
